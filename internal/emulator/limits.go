package emulator

// Default execution budgets, applied unless a target config's limits
// override them. Matches the reference implementation's defaults so an
// imported fuzzware target behaves the same way here as there.
const (
	DefaultBasicBlocks      = 1_000_000
	DefaultInterrupts       = 0
	DefaultMmioRead         = 0
	DefaultInputReadOverdue = 0
)

// Limits bounds a single execution: a run that exceeds any configured
// limit is aborted and classified as "limit exceeded" rather than left to
// run forever on an input that feeds the target an infinite loop. A zero
// value for a field means "no limit" for that dimension.
type Limits struct {
	BasicBlocks      int
	Interrupts       int
	MmioRead         int
	InputReadOverdue int
}

// NewLimits returns the default limits: a basic-block cap, and no cap on
// interrupts, MMIO reads, or overdue input reads.
func NewLimits() Limits {
	return Limits{BasicBlocks: DefaultBasicBlocks}
}

// NoLimits returns a Limits with every dimension uncapped, used for
// interactive `run` sessions where the operator drives execution by hand.
func NoLimits() Limits {
	return Limits{}
}

// Exceeded reports whether counts has exceeded any limit configured
// (non-zero) in l.
func (l Limits) Exceeded(counts Counts) (dimension string, exceeded bool) {
	switch {
	case l.BasicBlocks != 0 && counts.BasicBlock >= l.BasicBlocks:
		return "basic_blocks", true
	case l.Interrupts != 0 && counts.Interrupt >= l.Interrupts:
		return "interrupts", true
	case l.MmioRead != 0 && counts.MmioRead >= l.MmioRead:
		return "mmio_read", true
	case l.InputReadOverdue != 0 && counts.InputReadOverdue >= l.InputReadOverdue:
		return "input_read_overdue", true
	default:
		return "", false
	}
}

// TargetLimits is the on-disk (YAML) representation of Limits. As in
// Limits, zero means "no limit", so a target config that omits a field
// disables that budget.
type TargetLimits struct {
	BasicBlocks      int `yaml:"basic_blocks"`
	Interrupts       int `yaml:"interrupts"`
	MmioRead         int `yaml:"mmio_read"`
	InputReadOverdue int `yaml:"input_read_overdue"`
}

// DefaultTargetLimits returns the on-disk defaults.
func DefaultTargetLimits() TargetLimits {
	return TargetLimits{
		BasicBlocks:      DefaultBasicBlocks,
		Interrupts:       DefaultInterrupts,
		MmioRead:         DefaultMmioRead,
		InputReadOverdue: DefaultInputReadOverdue,
	}
}

// ToLimits converts a TargetLimits into the runtime Limits. Zero already
// means "no limit" in both representations, so this is a plain copy.
func (t TargetLimits) ToLimits() Limits {
	return Limits{
		BasicBlocks:      t.BasicBlocks,
		Interrupts:       t.Interrupts,
		MmioRead:         t.MmioRead,
		InputReadOverdue: t.InputReadOverdue,
	}
}
