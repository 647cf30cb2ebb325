package ir

// Register designates one of the hardware-named storage locations with
// fixed latency or ordering hazards. Plain accumulators and register-file
// slots are assigned downstream and never appear here.
type Register uint8

// Hardware registers.
const (
	RegNone Register = iota

	// RegDiscard is the write sink; results written to it are dropped and
	// impose no ordering constraint on later instructions.
	RegDiscard

	// RegUniform is the uniform read FIFO. Reading it pops the FIFO, so a
	// read is a side effect.
	RegUniform

	// Special-function unit request registers. All four share one result
	// register with a fixed two-instruction latency.
	RegSFURecip
	RegSFURecipSqrt
	RegSFUExp2
	RegSFULog2
	// RegSFUResult is the shared SFU result register.
	RegSFUResult

	// Texture unit address registers. Writing one issues a lookup whose
	// result arrives with fixed latency.
	RegTMU0Addr
	RegTMU1Addr

	// Memory-transfer bus, load direction: DMA address, busy status, and
	// data FIFO.
	RegDMALoadAddr
	RegDMALoadBusy
	RegDMALoadData

	// Memory-transfer bus, store direction.
	RegDMAStoreAddr
	RegDMAStoreBusy
	RegDMAStoreData

	// VPM access setup registers.
	RegVPMReadSetup
	RegVPMWriteSetup

	// RegMutex is the hardware mutex. A read acquires it, a write releases
	// it; the accesses delimit a critical section that must never be
	// reordered across or widened.
	RegMutex
)

var registerNames = map[Register]string{
	RegNone:          "-",
	RegDiscard:       "discard",
	RegUniform:       "uniform",
	RegSFURecip:      "sfu_recip",
	RegSFURecipSqrt:  "sfu_rsqrt",
	RegSFUExp2:       "sfu_exp2",
	RegSFULog2:       "sfu_log2",
	RegSFUResult:     "sfu_out",
	RegTMU0Addr:      "tmu0_addr",
	RegTMU1Addr:      "tmu1_addr",
	RegDMALoadAddr:   "dma_ld_addr",
	RegDMALoadBusy:   "dma_ld_busy",
	RegDMALoadData:   "dma_ld_data",
	RegDMAStoreAddr:  "dma_st_addr",
	RegDMAStoreBusy:  "dma_st_busy",
	RegDMAStoreData:  "dma_st_data",
	RegVPMReadSetup:  "vpm_rd_setup",
	RegVPMWriteSetup: "vpm_wr_setup",
	RegMutex:         "mutex",
}

// String returns the register's assembly name.
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return "reg?"
}

// HazardGroup classifies a special register by the hardware resource whose
// fixed-latency or ordering hazard it participates in.
type HazardGroup uint8

// Hazard groups.
const (
	HazardNone HazardGroup = iota
	// HazardSFU covers the special-function unit request registers and the
	// shared result register.
	HazardSFU
	// HazardTMU covers the texture unit address registers.
	HazardTMU
	// HazardDMALoad covers the load direction of the memory-transfer bus.
	HazardDMALoad
	// HazardDMAStore covers the store direction of the memory-transfer bus.
	HazardDMAStore
	// HazardMutex covers the hardware mutex register.
	HazardMutex
)

// hazardGroups is the single source of truth mapping each special register
// to its hazard group. Passes consult this table instead of re-deriving
// register relationships.
var hazardGroups = map[Register]HazardGroup{
	RegSFURecip:     HazardSFU,
	RegSFURecipSqrt: HazardSFU,
	RegSFUExp2:      HazardSFU,
	RegSFULog2:      HazardSFU,
	RegSFUResult:    HazardSFU,
	RegTMU0Addr:     HazardTMU,
	RegTMU1Addr:     HazardTMU,
	RegDMALoadAddr:  HazardDMALoad,
	RegDMALoadBusy:  HazardDMALoad,
	RegDMALoadData:  HazardDMALoad,
	RegDMAStoreAddr: HazardDMAStore,
	RegDMAStoreBusy: HazardDMAStore,
	RegDMAStoreData: HazardDMAStore,
	RegMutex:        HazardMutex,
}

// groupMembers lists each group's registers in a fixed order so that
// exclusion sets grow deterministically.
var groupMembers = map[HazardGroup][]Register{
	HazardSFU:      {RegSFURecip, RegSFURecipSqrt, RegSFUExp2, RegSFULog2, RegSFUResult},
	HazardTMU:      {RegTMU0Addr, RegTMU1Addr},
	HazardDMALoad:  {RegDMALoadAddr, RegDMALoadBusy, RegDMALoadData},
	HazardDMAStore: {RegDMAStoreAddr, RegDMAStoreBusy, RegDMAStoreData},
	HazardMutex:    {RegMutex},
}

// Hazard returns the hazard group the register belongs to, or HazardNone.
func (r Register) Hazard() HazardGroup {
	return hazardGroups[r]
}

// IsSpecialFunction reports whether the register belongs to the SFU or TMU
// hazard groups. Any access to these within a delay window is unsafe to
// pull forward past a pending SFU or TMU operation.
func (r Register) IsSpecialFunction() bool {
	h := r.Hazard()
	return h == HazardSFU || h == HazardTMU
}

// RegistersInGroup returns the registers belonging to the given hazard
// group, in a fixed order.
func RegistersInGroup(g HazardGroup) []Register {
	return groupMembers[g]
}

// BusCoupledRegisters returns the busy and data registers coupled to a
// memory-transfer-bus address register, or nil for any other register. A
// pending bus transaction on an address register makes its direction's busy
// and data registers hazardous as well.
func BusCoupledRegisters(r Register) []Register {
	switch r {
	case RegDMALoadAddr:
		return []Register{RegDMALoadBusy, RegDMALoadData}
	case RegDMAStoreAddr:
		return []Register{RegDMAStoreBusy, RegDMAStoreData}
	default:
		return nil
	}
}

// readHasSideEffects reports whether reading the register consumes
// hardware state (FIFO pops, mutex acquisition, pending results).
func readHasSideEffects(r Register) bool {
	switch r {
	case RegUniform, RegMutex, RegSFUResult, RegDMALoadData, RegDMALoadBusy, RegDMAStoreBusy:
		return true
	default:
		return false
	}
}
