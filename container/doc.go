// Package container is the sandbox harness: it turns a candidate Dockerfile
// and its script into a pass/fail Verdict.
//
// A test runs the stages CheckDaemon, Build, Run, Compare and Cleanup in
// order and stops at the first failure. Runs are capped at 512 MiB of memory,
// one CPU and 100 processes, with networking disabled. The built image is
// removed afterwards unless the daemon never answered.
//
//	rt, err := container.NewDockerRuntime()
//	mgr := container.NewManager(rt)
//	v := mgr.Test(ctx, container.TestRequest{
//	    DockerfilePath: "/tmp/run1/Dockerfile",
//	    ScriptPath:     "scripts/upper.py",
//	    Input:          "hi",
//	    ExpectedOutput: "HI",
//	})
package container
