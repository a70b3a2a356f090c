// Package process runs language servers as child processes.
//
// A Process exposes its standard streams through non-blocking reads so
// the goroutine that polls a connection never stalls on a quiet server:
//
//	sup := process.NewSupervisor()
//	defer sup.Shutdown(2 * time.Second)
//
//	proc, err := sup.Start("gopls", process.Spec{Command: "gopls"})
//	if err != nil {
//	    return err
//	}
//	n, err := proc.ReadStdout(buf) // 0, nil when nothing is pending
//
// Exit is observed through Done and Exited; ExitCode and State report how
// the process ended.
package process
