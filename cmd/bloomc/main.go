// Package main is a small driver that runs the full optimization
// pipeline over a synthetic demo module and prints the textual IR
// before and after, so the transform catalogue can be exercised end
// to end without a separate frontend. Bloom has no textual source
// format of its own (spec.md §6: the printer is "for human inspection
// only"); callers build a Module through Builder and hand it to
// RunProgram.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/tliron/commonlog"

	"bloom/internal/ir"
	"bloom/internal/pipeline"
)

func main() {
	commonlog.Configure(1, nil)
	logger := commonlog.GetLogger("bloom.cli")

	ctx := ir.NewContext()
	m := demoModule(ctx)

	fmt.Println("before:")
	fmt.Println(ir.NewPrinter(ctx).Print(m))

	opts := pipeline.DefaultOptions()
	opts.Logger = logger
	ipoCtx, iterations := pipeline.RunProgram([]*ir.Module{m}, opts)

	color.Green("optimized %s to a fixed point in %d interprocedural iteration(s)", m.Name(), iterations)
	for name, count := range ipoCtx.Snapshot() {
		fmt.Printf("  %s: %d\n", name, count)
	}

	fmt.Println("after:")
	fmt.Println(ir.NewPrinter(ctx).Print(m))

	os.Exit(0)
}

// demoModule builds `fn add_one(x: i32) -> i32 { return x + 1; }` and
// a driver that calls it with a literal argument twice, so constant
// folding, CSE, and inlining all have something to do.
func demoModule(ctx *ir.Context) *ir.Module {
	m := ctx.NewModule("demo")
	i32 := ir.TypeI32

	b := ir.NewBuilder(ctx)
	b.SetModule(m)

	addOne, body, params := b.CreateFunction("add_one", []ir.TypeID{i32}, i32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	one := b.LitInt(ir.DI32, 1)
	sum := b.Add(params[0], one)
	b.RetValue(sum)

	_, driverBody, _ := b.CreateFunction("main", nil, i32, false, ir.PropDriver)
	b.SetInsertionPoint(driverBody)
	five := b.LitInt(ir.DI32, 5)
	r1 := b.Call(addOne, five)
	r2 := b.Call(addOne, five)
	total := b.Add(r1, r2)
	b.RetValue(total)

	return m
}
