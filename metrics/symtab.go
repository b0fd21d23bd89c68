package metrics

import "github.com/prometheus/client_golang/prometheus"

// SymtabMetrics instruments the symbolization path: ELF/proc errors,
// known/unknown symbol counts, and the number of stacks whose unknown
// frames outnumber the known ones.
type SymtabMetrics struct {
	ElfErrors      *prometheus.CounterVec
	ProcErrors     *prometheus.CounterVec
	KnownSymbols   *prometheus.CounterVec
	UnknownSymbols *prometheus.CounterVec
	UnknownModules *prometheus.CounterVec
	UnknownStacks  *prometheus.CounterVec
}

func NewSymtabMetrics(reg Registerer) *SymtabMetrics {
	return &SymtabMetrics{
		ElfErrors: reg.RegisterCounterVec(
			"iwm_symtab_elf_errors_total",
			"Total number of errors while trying to open an elf file",
			[]string{"error"},
		),
		ProcErrors: reg.RegisterCounterVec(
			"iwm_symtab_proc_errors_total",
			"Total number of errors while trying refreshing /proc/pid/maps",
			[]string{"error"},
		),
		KnownSymbols: reg.RegisterCounterVec(
			"iwm_symtab_known_symbols_total",
			"Total number of successfully resolved symbols",
			[]string{"service_name"},
		),
		UnknownSymbols: reg.RegisterCounterVec(
			"iwm_symtab_unknown_symbols_total",
			"Total number of unresolved symbols for a module",
			[]string{"service_name"},
		),
		UnknownModules: reg.RegisterCounterVec(
			"iwm_symtab_unknown_modules_total",
			"Total number of unknown modules - could not find an entry in /proc/pid/maps for a RIP",
			[]string{"service_name"},
		),
		UnknownStacks: reg.RegisterCounterVec(
			"iwm_symtab_unknown_stacks_total",
			"Total number of stacks with unknowns > knowns",
			[]string{"service_name"},
		),
	}
}
