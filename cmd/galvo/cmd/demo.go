/*
Copyright © 2024 Jonathan Taylor <jonrtaylor12@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package cmd

import (
	"context"
	"fmt"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/daq/sim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk a single axis and then an x/z pair through a scripted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		backend := sim.New(sampleRate, logger.Named("sim"))

		axis, err := galvo.NewAxis(ctx, table(), "x", "DAC0", 0, backend, logger.Named("x"))
		if err != nil {
			return err
		}
		for _, pos := range []float64{-1, 6, 2000, 12300, 1500, 900} {
			if _, _, err := axis.GoTo(ctx, pos, 0); err != nil {
				return err
			}
			fmt.Printf("x at %.1fum, history %v\n", axis.Pos(), axis.History())
		}
		axis.SetOrigin(900)
		fmt.Printf("origin %.1fum, relative %.1fum\n", axis.Origin(), axis.RelPos())

		if _, _, err := axis.GoTo(ctx, 100, 10000); err != nil {
			return err
		}
		fmt.Printf("x at %.1fum after streamed move\n", axis.Pos())

		fmt.Println("axis group")
		group, err := galvo.NewGroup(ctx, table(), []galvo.AxisID{"x", "z"},
			map[galvo.AxisID]string{"x": "DAC0", "z": "DAC1"},
			map[galvo.AxisID]float64{"x": 0, "z": 0},
			backend, logger.Named("group"),
		)
		if err != nil {
			return err
		}
		if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 100, "z": 300}, 0); err != nil {
			return err
		}
		fmt.Printf("pos %v relative %v origin %v\n", group.Pos(), group.RelPos(), group.Origin())

		group.SetOrigin(map[galvo.AxisID]float64{"x": 300, "z": 1000})
		if _, _, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": 1000, "z": 3000}, 0); err != nil {
			return err
		}
		fmt.Printf("pos %v origin %v\n", group.Pos(), group.Origin())

		if _, _, err := group.ResetPos(ctx); err != nil {
			return err
		}
		fmt.Printf("pos %v after reset\n", group.Pos())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
