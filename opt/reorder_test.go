package opt_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
	"github.com/vectralab/qcc/opt"
)

var _ = Describe("Reorder", func() {
	var (
		cfg        *config.Config
		m          *ir.Method
		b          *ir.BasicBlock
		a, x, y, c *ir.Local
	)

	BeforeEach(func() {
		cfg = config.Default()
		m = ir.NewMethod("kernel")
		b = m.AddBlock("entry")
		a = m.AddLocal(ir.TypeInt32, "%a")
		x = m.AddLocal(ir.TypeInt32, "%x")
		y = m.AddLocal(ir.TypeInt32, "%y")
		c = m.AddLocal(ir.TypeInt32, "%c")
	})

	Describe("wait-register placeholders", func() {
		It("should fill the slot with a later independent instruction", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			b.Append(ir.NewNop(ir.DelayWaitRegister))
			cons := ir.NewOperation(ir.OpAdd,
				m.AddLocal(ir.TypeInt32, "%b").CreateReference(),
				a.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
			b.Append(cons)
			ind := ir.NewOperation(ir.OpMul24,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, ind, cons,
			}))
			Expect(countNops(b)).To(Equal(0))
			Expect(c.SingleWriter()).To(BeIdenticalTo(ind))
		})

		It("should not move a consumer of the hazardous value", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			cons := ir.NewOperation(ir.OpAdd,
				c.CreateReference(), a.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
			b.Append(cons)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, cons,
			}))
		})

		It("should not move a reader of a value produced by a skipped instruction", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			// skipped: reads the hazardous value, so its own result joins
			// the exclusion set
			mid := ir.NewOperation(ir.OpAdd,
				c.CreateReference(), a.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
			b.Append(mid)
			// depends on the skipped instruction, must stay put
			dep := ir.NewOperation(ir.OpAdd,
				m.AddLocal(ir.TypeInt32, "%d").CreateReference(),
				c.CreateReference(), ir.LiteralValue(2, ir.TypeInt32))
			b.Append(dep)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, mid, dep,
			}))
		})

		It("should leave the placeholder when the hazard origin is outside the block", func() {
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			ind := ir.NewOperation(ir.OpMul24,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), nop, ind,
			}))
		})

		It("should propagate a pairing veto from the placeholder to its replacement", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			nop.CanBeCombined = false
			b.Append(nop)
			ind := ir.NewOperation(ir.OpMul24,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, ind,
			}))
			Expect(ind.CanBeCombined).To(BeFalse())
		})

		It("should exclude the bus registers coupled to a pending address write", func() {
			addr := ir.NewMove(
				ir.RegisterValue(ir.RegDMALoadAddr, ir.TypePointer), x.CreateReference())
			b.Append(addr)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			// touches the coupled data FIFO, must not be pulled forward
			drain := ir.NewMove(
				c.CreateReference(), ir.RegisterValue(ir.RegDMALoadData, ir.TypeInt32))
			b.Append(drain)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), addr, nop, drain,
			}))
		})
	})

	Describe("special-function placeholders", func() {
		It("should fill an SFU wait with an instruction avoiding the whole group", func() {
			req := ir.NewMove(
				ir.RegisterValue(ir.RegSFUExp2, ir.TypeFloat32), x.CreateReference())
			b.Append(req)
			b.Append(ir.NewNop(ir.DelayWaitSFU))
			read := ir.NewMove(
				a.CreateReference(), ir.RegisterValue(ir.RegSFUResult, ir.TypeFloat32))
			b.Append(read)
			ind := ir.NewOperation(ir.OpFAdd,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), req, ind, read,
			}))
		})

		It("should never pull another special-function access into a TMU wait", func() {
			req := ir.NewMove(
				ir.RegisterValue(ir.RegTMU0Addr, ir.TypePointer), x.CreateReference())
			b.Append(req)
			nop := ir.NewNop(ir.DelayWaitTMU)
			b.Append(nop)
			other := ir.NewMove(
				ir.RegisterValue(ir.RegSFULog2, ir.TypeFloat32), y.CreateReference())
			b.Append(other)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), req, nop, other,
			}))
		})
	})

	Describe("mutex fences", func() {
		It("should abort the whole search at a mutex release", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			cons := ir.NewOperation(ir.OpAdd,
				c.CreateReference(), a.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
			b.Append(cons)
			release := ir.NewMove(
				ir.RegisterValue(ir.RegMutex, ir.TypeInt32), ir.LiteralValue(1, ir.TypeInt32))
			b.Append(release)
			// independent, but on the far side of the release
			ind := ir.NewOperation(ir.OpMul24,
				m.AddLocal(ir.TypeInt32, "%e").CreateReference(),
				x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, cons, release, ind,
			}))
		})

		It("should abort the whole search at a mutex acquire", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			acquire := ir.NewMove(
				c.CreateReference(), ir.RegisterValue(ir.RegMutex, ir.TypeInt32))
			b.Append(acquire)
			ind := ir.NewOperation(ir.OpMul24,
				m.AddLocal(ir.TypeInt32, "%e").CreateReference(),
				x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, acquire, ind,
			}))
		})
	})

	Describe("never-moved instructions", func() {
		It("should skip branches, barriers, pragmas and conditional instructions", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			pragma := ir.NewPragma("hint")
			b.Append(pragma)
			barrier := ir.NewMemBarrier()
			b.Append(barrier)
			cond := ir.NewOperation(ir.OpAdd,
				c.CreateReference(), x.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
			cond.Cond = ir.CondZeroSet
			b.Append(cond)
			ind := ir.NewOperation(ir.OpMul24,
				m.AddLocal(ir.TypeInt32, "%e").CreateReference(),
				x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, ind, pragma, barrier, cond,
			}))
		})

		It("should never replace a placeholder carrying a signal", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewSignalNop(ir.DelayWaitRegister, ir.SignalLoadTMU)
			b.Append(nop)
			ind := ir.NewOperation(ir.OpMul24,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, ind,
			}))
		})

		It("should never use another placeholder as a replacement", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop1 := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop1)
			nop2 := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop2)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(countNops(b)).To(Equal(2))
		})
	})

	Describe("codegen placeholders", func() {
		It("should leave branch delay slots alone", func() {
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayBranch)
			b.Append(nop)
			ind := ir.NewOperation(ir.OpMul24,
				c.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(blockInstructions(b)).To(Equal([]*ir.Instruction{
				b.Begin().Get(), prod, nop, ind,
			}))
		})

		It("should leave thread-end slots alone", func() {
			nop := ir.NewNop(ir.DelayThreadEnd)
			b.Append(nop)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(countNops(b)).To(Equal(1))
		})
	})

	Describe("lookahead bound", func() {
		It("should give up once the scan budget is exhausted", func() {
			cfg.NopLookahead = 2
			prod := ir.NewOperation(ir.OpAdd,
				a.CreateReference(), x.CreateReference(), y.CreateReference())
			b.Append(prod)
			nop := ir.NewNop(ir.DelayWaitRegister)
			b.Append(nop)
			b.Append(ir.NewOperation(ir.OpAdd,
				c.CreateReference(), a.CreateReference(), ir.LiteralValue(1, ir.TypeInt32)))
			// a valid candidate, but beyond the two-instruction budget
			ind := ir.NewOperation(ir.OpMul24,
				m.AddLocal(ir.TypeInt32, "%e").CreateReference(),
				x.CreateReference(), y.CreateReference())
			b.Append(ind)

			Expect(opt.Reorder.Run(nil, m, cfg)).To(Succeed())

			Expect(countNops(b)).To(Equal(1))
		})
	})
})
