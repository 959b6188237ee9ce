// Copyright (C) 2015-2020 the Gprovision Authors. All Rights Reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// SPDX-License-Identifier: BSD-3-Clause
//

// +build mage

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/magefile/mage/mg"

	"github.com/pi-top/pi-top-Offline-Updates/build/paths"
)

/* Env vars
RUN - passed to go test -run. Only tests that match the given regex will run.
COUNT - passed to go test -count. Use 1 to bypass test result caching, and
    higher values to repeat tests.
RUN and COUNT are used in testArgs() function.
*/

type Tests mg.Namespace

//runs unit tests
func (Tests) Unit(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, nil, args...)
}

//runs unit tests with the race detector
func (Tests) Race(ctx context.Context) error {
	args, err := testArgs(ctx, nil, "")
	if err != nil {
		return err
	}
	return gotest(ctx, []string{"CGO_ENABLED=1"}, append([]string{"-race"}, args...)...)
}

//runs go vet, including files behind the mage tag
func (Tests) Vet(ctx context.Context) error {
	vet := exec.CommandContext(ctx, "go", "vet")
	vet.Args = append(vet.Args, paths.GoDirs...)
	vet.Dir = paths.RepoRoot
	vet.Stdout = os.Stdout
	vet.Stderr = os.Stderr
	if err := vet.Run(); err != nil {
		return mg.Fatal(2, "go vet:", err)
	}
	mageVet := exec.CommandContext(ctx, "go", "vet", "-tags", "mage", "./build/...")
	mageVet.Dir = paths.RepoRoot
	mageVet.Stdout = os.Stdout
	mageVet.Stderr = os.Stderr
	if err := mageVet.Run(); err != nil {
		return mg.Fatal(2, "go vet (mage):", err)
	}
	return nil
}

//args for 'go test': pkg, -run, -count, -timeout
func testArgs(ctx context.Context, pkgs []string, onlyRun string) ([]string, error) {
	var hasDeadline bool
	var deadline time.Time
	if len(pkgs) == 0 {
		pkgs = paths.GoDirs
	}
	args := []string{}
	//pass timeout arg?
	deadline, hasDeadline = ctx.Deadline()
	if hasDeadline {
		dur := time.Until(deadline) - 20*time.Second //less time than the exact deadline so go test can print out message about what test it's on
		if dur < 0 {
			//already past deadline
			return nil, mg.Fatal(1, "deadline exceeded")
		}
		args = append(args, "-timeout", dur.String())
	}
	args = append(args, pkgs...)

	//limit tests to be run
	if onlyRun != "" {
		args = append(args, "-run", onlyRun)
	} else if run := os.Getenv("RUN"); run != "" {
		args = append(args, "-run", run)
	}

	//run test(s) multiple times
	if count := os.Getenv("COUNT"); count != "" {
		c, err := strconv.Atoi(count)
		if err != nil {
			return nil, mg.Fatalf(3, "COUNT must be unset or numeric: %s", err)
		}
		if c > 0 {
			args = append(args, "-count", count)
		}
	}
	return args, nil
}

func gotest(ctx context.Context, env []string, args ...string) error {
	//if this is set, run gotestsum and write output to the file named in xout
	junitOut := ctx.Value("JUNIT")

	env = append(env, os.Environ()...)

	var err error
	var out []byte
	if junitOut != nil {
		jout := junitOut.(string)
		gts := exec.CommandContext(ctx, "gotestsum", "--junitfile", jout, "--")
		//args after the -- are passed to go test
		gts.Args = append(gts.Args, args...)
		gts.Env = env
		gts.Dir = paths.RepoRoot
		fmt.Printf("running %v...\n", gts.Args)
		out, err = gts.CombinedOutput()
		if err == nil {
			return nil
		}
		fmt.Printf("%v exited with error %q. output:\n%s\n", gts.Args, err, string(out))
		if fi, serr := os.Stat(jout); serr == nil && fi.Size() > 100 {
			// the report exists and holds enough to diagnose the failure.
			return mg.Fatal(4, err)
		}
		fmt.Println("running 'go test' directly for a more informative error...")
	}
	tst := exec.CommandContext(ctx, "go", "test")
	tst.Args = append(tst.Args, args...)
	tst.Env = env
	tst.Dir = paths.RepoRoot
	fmt.Printf("running %v...\n", tst.Args)
	out, err = tst.CombinedOutput()
	if err == nil {
		fmt.Println("'go test' passes")
	} else {
		fmt.Printf("'go test' output:\n%s\n", string(out))
		return mg.Fatal(5, "go test error:", err)
	}
	return err
}

func (Tests) Lint(ctx context.Context) error {
	lp, err := exec.LookPath("golangci-lint")
	if err != nil {
		if _, serr := os.Stat(paths.LinterPath); serr != nil {
			fmt.Println("golangci-lint not present, skipping")
			return nil
		}
		lp = paths.LinterPath
	}
	exprList := []string{
		"return value of.*Until.*not checked",
	}

	lint := exec.Command(lp, "run") //additional args set below
	//set timeout if there is one
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		dur := time.Until(deadline) - 20*time.Second
		if dur < 0 {
			//already past deadline
			return mg.Fatal(8, "deadline exceeded")
		}
		lint.Args = append(lint.Args, "--timeout", dur.String())
	}
	lint.Args = append(lint.Args, "./...") //will not work with abs path, so set pwd
	for _, e := range exprList {
		lint.Args = append(lint.Args, "-e", e)
	}
	lint.Env = os.Environ()
	lint.Stderr = os.Stderr
	lint.Stdout = os.Stdout
	lint.Dir = paths.RepoRoot
	err = lint.Run()
	if err != nil {
		fmt.Printf("running %v: %s\n", lint.Args, strings.TrimSpace(err.Error()))
		return mg.Fatal(9, "golangci-lint exec:", err)
	}
	fmt.Println("golangci-lint: success")
	return nil
}
