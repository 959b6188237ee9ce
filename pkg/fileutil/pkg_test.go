// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

package fileutil

import (
	"os"
	fp "path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pi-top/pi-top-Offline-Updates/pkg/log/testlog"
)

func mkfile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(fp.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
}

func TestListFiles(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	root := t.TempDir()
	mkfile(t, fp.Join(root, "etc/b.conf"), "b")
	mkfile(t, fp.Join(root, "a.txt"), "a")
	mkfile(t, fp.Join(root, "home/pi/x/y.txt"), "y")
	require.NoError(t, os.Symlink("a.txt", fp.Join(root, "link")))
	require.NoError(t, os.MkdirAll(fp.Join(root, "empty"), 0755))

	files, err := ListFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "etc/b.conf", "home/pi/x/y.txt"}, files)
}

func TestCopyTree(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	src := t.TempDir()
	dest := t.TempDir()
	mkfile(t, fp.Join(src, "etc/b.conf"), "bbb")
	mkfile(t, fp.Join(src, "a.txt"), "a")
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(fp.Join(src, "etc/b.conf"), mtime, mtime))

	var seen []int
	err := CopyTree(src, dest, func(rel string, done, total int) {
		assert.Equal(t, 2, total)
		seen = append(seen, done)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)

	got, err := os.ReadFile(fp.Join(dest, "etc/b.conf"))
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(got))
	fi, err := os.Stat(fp.Join(dest, "etc/b.conf"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), fi.Mode().Perm())
	assert.True(t, fi.ModTime().Equal(mtime), "mtime %s", fi.ModTime())
}

func TestFreeSpace(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	assert.Greater(t, FreeSpace(t.TempDir()), int64(0))
	assert.Equal(t, int64(-1), FreeSpace("/nonexistent/dir/for/test"))
}

func TestMagic(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	dir := t.TempDir()
	gz := fp.Join(dir, "a.gz")
	require.NoError(t, os.WriteFile(gz, []byte{0x1f, 0x8b, 8, 0}, 0644))
	xz := fp.Join(dir, "a.xz")
	require.NoError(t, os.WriteFile(xz, append(append([]byte{}, xzId...), 0, 4), 0644))
	assert.True(t, IsGzip(gz))
	assert.False(t, IsXZ(gz))
	assert.True(t, IsXZ(xz))
	assert.False(t, IsGzip(fp.Join(dir, "missing")))

	tail, err := ReadTail(gz, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 0}, tail)
	_, err = ReadTail(gz, 10)
	assert.Error(t, err)
}

func TestMountinfo(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	mi := "36 35 98:0 /mnt1 /media/usb rw,noatime master:1 - vfat /dev/sda1 rw\n" +
		"bad line\n"
	assert.True(t, mountinfoHas(mi, "/media/usb"))
	assert.False(t, mountinfoHas(mi, "/media"))
}

func TestIsWithin(t *testing.T) {
	for _, tc := range []struct {
		dir, path string
		want      bool
	}{
		{"/tmp", "/tmp/x", true},
		{"/tmp/", "/tmp/x/y", true},
		{"/tmp", "/tmp", false},
		{"/tmp", "/tmpx", false},
		{"/tmp", "/tmp/../etc", false},
		{"/tmp", "/", false},
	} {
		if got := IsWithin(tc.dir, tc.path); got != tc.want {
			t.Errorf("IsWithin(%q, %q): got %t, want %t", tc.dir, tc.path, got, tc.want)
		}
	}
}

func TestCopyFileSpecialBits(t *testing.T) {
	testlog.NewTestLog(t, true, false)
	dir := t.TempDir()
	src := fp.Join(dir, "helper")
	mkfile(t, src, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(src, 0755|os.ModeSetuid))
	fi, err := os.Stat(src)
	require.NoError(t, err)
	require.NotZero(t, fi.Mode()&os.ModeSetuid)

	dest := fp.Join(dir, "copy")
	require.NoError(t, CopyFile(src, dest))
	fi, err = os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), fi.Mode().Perm())
	assert.NotZero(t, fi.Mode()&os.ModeSetuid)
}

func TestWaitFor(t *testing.T) {
	dir := t.TempDir()
	path := fp.Join(dir, "usb")
	assert.False(t, WaitFor(path, 150*time.Millisecond))
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.Mkdir(path, 0755)
	}()
	assert.True(t, WaitFor(path, 5*time.Second))
}
