// Package executor runs a compiled sweep.
//
// The configuration space is every descriptor times every run. Two orders
// are supported: interleave runs the whole descriptor list once per run,
// consecutive repeats each descriptor for all runs before moving on.
// Configurations run one at a time; each child process is waited for and
// its output drained before the next one starts. No timeout is applied, so
// a benchmark that never exits blocks the sweep until the context is
// cancelled.
//
// Invocation problems (a crash, missing profiling output, a backend that
// cannot place the job) are logged and the sweep continues. Errors from the
// output parser or the writer abort the sweep.
package executor
