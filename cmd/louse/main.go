// louse runs a program under the heap checker.  It translates its
// flags into the LOUSE_* environment, preloads the checker library and
// execs the target, propagating the target's exit code.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
)

var (
	withLeaks  = flag.Bool("with-leaks", true, "report leaks at program exit")
	withTraces = flag.Bool("with-traces", true, "capture a stack trace per allocation")
	suppress   = flag.String("suppress", "", "POSIX extended regex; matching leaks are not reported")
	maxFrames  = flag.Int("max-frames", 16, "depth of captured stack traces")
	maxLeaks   = flag.Int("max-leaks", 100, "maximum number of unique leaks to report")
	library    = flag.String("library", "./liblouse.so", "path of the preloadable checker library")
)

func onoff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] program [args...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		"LD_PRELOAD="+*library,
		"LOUSE_WITHLEAKS="+onoff(*withLeaks),
		"LOUSE_WITHTRACES="+onoff(*withTraces),
		"LOUSE_FILTER="+*suppress,
		fmt.Sprintf("LOUSE_MAXFRAMES=%d", *maxFrames),
		fmt.Sprintf("LOUSE_MAXLEAKS=%d", *maxLeaks),
	)

	err := cmd.Run()
	if err == nil {
		return
	}
	if exit, ok := err.(*exec.ExitError); ok {
		os.Exit(exit.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "err starting program: %v\n", err)
	os.Exit(1)
}
