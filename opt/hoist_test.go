package opt_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vectralab/qcc/config"
	"github.com/vectralab/qcc/ir"
	"github.com/vectralab/qcc/opt"
)

var _ = Describe("HoistRotationSources", func() {
	var (
		cfg     *config.Config
		m       *ir.Method
		b       *ir.BasicBlock
		a, x, y *ir.Local
	)

	BeforeEach(func() {
		cfg = config.Default()
		cfg.AccumulatorWindow = 4
		m = ir.NewMethod("kernel")
		b = m.AddBlock("entry")
		a = m.AddLocal(ir.TypeInt32, "%a")
		x = m.AddLocal(ir.TypeInt32, "%x")
		y = m.AddLocal(ir.TypeInt32, "%y")
	})

	filler := func(n int) *ir.Instruction {
		dest := m.AddNewLocal(ir.TypeInt32, "f")
		return ir.NewOperation(ir.OpAdd,
			dest.CreateReference(), a.CreateReference(), ir.LiteralValue(int64(n), ir.TypeInt32))
	}

	It("should copy a far-written source into a fresh temporary", func() {
		w := ir.NewLoadImm(x.CreateReference(), 7)
		b.Append(w)
		for i := 0; i < 5; i++ {
			b.Append(filler(i))
		}
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b.Append(rot)

		it := walkerAt(b, rot)
		ret, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(ret.Get()).To(BeIdenticalTo(w))

		instrs := blockInstructions(b)
		Expect(instrs).To(HaveLen(9))
		copyInst := instrs[6]
		Expect(copyInst.Op).To(Equal(ir.OpMove))
		tmp := copyInst.Result.Local
		Expect(strings.HasPrefix(tmp.Name, "%vector_rotation.")).To(BeTrue())
		Expect(copyInst.Args[0].Local).To(BeIdenticalTo(x))

		Expect(rot.Args[0].Local).To(BeIdenticalTo(tmp))
		_, stillUser := x.UseOf(rot)
		Expect(stillUser).To(BeFalse())
		use, ok := tmp.UseOf(rot)
		Expect(ok).To(BeTrue())
		Expect(use.ReadsLocal()).To(BeTrue())
		Expect(tmp.SingleWriter()).To(BeIdenticalTo(copyInst))
	})

	It("should place the copy before a run of placeholders preceding the rotation", func() {
		w := ir.NewLoadImm(x.CreateReference(), 7)
		b.Append(w)
		for i := 0; i < 3; i++ {
			b.Append(filler(i))
		}
		b.Append(ir.NewNop(ir.DelayWaitRegister))
		b.Append(ir.NewNop(ir.DelayWaitRegister))
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b.Append(rot)

		it := walkerAt(b, rot)
		_, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		instrs := blockInstructions(b)
		Expect(instrs).To(HaveLen(9))
		Expect(instrs[5].Op).To(Equal(ir.OpMove))
		Expect(instrs[6].Op).To(Equal(ir.OpNop))
		Expect(instrs[7].Op).To(Equal(ir.OpNop))
		Expect(instrs[8]).To(BeIdenticalTo(rot))
	})

	It("should leave a locally-limited source alone", func() {
		w := ir.NewLoadImm(x.CreateReference(), 7)
		b.Append(w)
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b.Append(rot)

		it := walkerAt(b, rot)
		ret, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(ret).To(Equal(it))
		Expect(blockInstructions(b)).To(HaveLen(3))
		Expect(rot.Args[0].Local).To(BeIdenticalTo(x))
	})

	It("should hoist a source written in another block", func() {
		w := ir.NewLoadImm(x.CreateReference(), 7)
		b.Append(w)
		b2 := m.AddBlock("tail")
		f := filler(0)
		b2.Append(f)
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b2.Append(rot)

		it := walkerAt(b2, rot)
		ret, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(ret.IsStartOfBlock()).To(BeTrue())

		instrs := blockInstructions(b2)
		Expect(instrs).To(HaveLen(4))
		Expect(instrs[1].Op).To(Equal(ir.OpMove))
		Expect(instrs[2]).To(BeIdenticalTo(f))
		Expect(instrs[3]).To(BeIdenticalTo(rot))
	})

	It("should give up on a rotation directly after the block label", func() {
		b2 := m.AddBlock("tail")
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b2.Append(rot)

		it := walkerAt(b2, rot)
		ret, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(ret).To(Equal(it))
		Expect(blockInstructions(b2)).To(HaveLen(2))
		Expect(rot.Args[0].Local).To(BeIdenticalTo(x))
	})

	It("should ignore non-rotation instructions", func() {
		mv := ir.NewMove(y.CreateReference(), x.CreateReference())
		b.Append(mv)

		it := walkerAt(b, mv)
		ret, err := opt.HoistRotationSources.Apply(nil, m, it, cfg)

		Expect(err).NotTo(HaveOccurred())
		Expect(ret).To(Equal(it))
		Expect(blockInstructions(b)).To(HaveLen(2))
	})
})

var _ = Describe("RunSingleSteps", func() {
	var (
		cfg  *config.Config
		m    *ir.Method
		b    *ir.BasicBlock
		x, y *ir.Local
	)

	BeforeEach(func() {
		cfg = config.Default()
		m = ir.NewMethod("kernel")
		b = m.AddBlock("entry")
		x = m.AddLocal(ir.TypeInt32, "%x")
		y = m.AddLocal(ir.TypeInt32, "%y")
	})

	It("should erase a move of a local onto itself", func() {
		b.Append(ir.NewMove(x.CreateReference(), x.CreateReference()))

		Expect(opt.RunSingleSteps.Run(nil, m, cfg)).To(Succeed())

		Expect(blockInstructions(b)).To(HaveLen(1))
		Expect(x.NumUsers()).To(Equal(0))
	})

	It("should rewrite an identity operation into a move", func() {
		op := ir.NewOperation(ir.OpAdd,
			y.CreateReference(), x.CreateReference(), ir.LiteralValue(0, ir.TypeInt32))
		b.Append(op)

		Expect(opt.RunSingleSteps.Run(nil, m, cfg)).To(Succeed())

		instrs := blockInstructions(b)
		Expect(instrs).To(HaveLen(2))
		Expect(instrs[1].Op).To(Equal(ir.OpMove))
		Expect(instrs[1].Args[0].Local).To(BeIdenticalTo(x))
		// the rewritten instruction owns the use records now
		Expect(x.NumUsers()).To(Equal(1))
		Expect(y.SingleWriter()).To(BeIdenticalTo(instrs[1]))
	})

	It("should rewrite a multiplication by one into a move", func() {
		op := ir.NewOperation(ir.OpMul24,
			y.CreateReference(), x.CreateReference(), ir.LiteralValue(1, ir.TypeInt32))
		b.Append(op)

		Expect(opt.RunSingleSteps.Run(nil, m, cfg)).To(Succeed())

		Expect(blockInstructions(b)[1].Op).To(Equal(ir.OpMove))
	})

	It("should keep an instruction with side effects untouched", func() {
		op := ir.NewOperation(ir.OpAdd,
			y.CreateReference(), x.CreateReference(), ir.LiteralValue(0, ir.TypeInt32))
		op.SetFlags = true
		b.Append(op)

		Expect(opt.RunSingleSteps.Run(nil, m, cfg)).To(Succeed())

		Expect(blockInstructions(b)[1]).To(BeIdenticalTo(op))
	})

	It("should drive the rotation hoist through the same sweep", func() {
		cfg.AccumulatorWindow = 2
		w := ir.NewLoadImm(x.CreateReference(), 7)
		b.Append(w)
		for i := 0; i < 4; i++ {
			dest := m.AddNewLocal(ir.TypeInt32, "f")
			b.Append(ir.NewOperation(ir.OpAdd,
				dest.CreateReference(), x.CreateReference(), ir.LiteralValue(int64(i), ir.TypeInt32)))
		}
		rot := ir.NewRotation(y.CreateReference(), x.CreateReference(), 1)
		b.Append(rot)

		Expect(opt.RunSingleSteps.Run(nil, m, cfg)).To(Succeed())

		Expect(rot.Args[0].Local.Name).To(HavePrefix("%vector_rotation."))
	})
})
