// Package pyrobpf holds the Go/BPF glue for the whole-machine CPU
// profiler's kernel-side program: the generated map/program bindings
// for bpf/profile.bpf.c.
package pyrobpf

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -target bpfel -cc clang Profile bpf/profile.bpf.c -- -I./bpf/headers
