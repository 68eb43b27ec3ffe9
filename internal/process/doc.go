// Package process supervises a long-running child process.
//
// The bridge uses it to run the miIO gateway that owns the plug's wire
// protocol. Run starts the child, restarts it with exponential backoff when
// it exits, and terminates the whole process group when the context is
// cancelled.
//
//	sup := process.New(process.Config{
//	    Name:   "miio-gateway",
//	    Binary: "/usr/local/bin/miio-gateway",
//	    Args:   []string{"--prefix", "miplug/miio"},
//	}, log)
//	go sup.Run(ctx)
package process
