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
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/jt05610/galvo"
	"github.com/jt05610/galvo/daq/sim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	gotoX     float64
	gotoZ     float64
	gotoSpeed float64
)

var gotoCmd = &cobra.Command{
	Use:   "goto",
	Short: "Move the simulated x/z pair to a position, Ctrl-C to interrupt",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			<-c
			cancel()
		}()

		backend := sim.New(sampleRate, logger.Named("sim"))
		group, err := galvo.NewGroup(ctx, table(), []galvo.AxisID{"x", "z"},
			map[galvo.AxisID]string{"x": "DAC0", "z": "DAC1"},
			map[galvo.AxisID]float64{"x": 0, "z": 0},
			backend, logger.Named("group"),
		)
		if err != nil {
			return err
		}
		positions, elapsed, err := group.GoTo(ctx, map[galvo.AxisID]float64{"x": gotoX, "z": gotoZ}, gotoSpeed)
		if err != nil {
			var canceled *galvo.Canceled
			if errors.As(err, &canceled) {
				fmt.Printf("stopped at %v after %.3fs\n", canceled.Positions, canceled.Elapsed)
				return nil
			}
			return err
		}
		fmt.Printf("arrived at %v in %.3fs\n", positions, elapsed)
		return nil
	},
}

func init() {
	gotoCmd.Flags().Float64VarP(&gotoX, "x", "x", 0, "x target in microns from origin")
	gotoCmd.Flags().Float64VarP(&gotoZ, "z", "z", 0, "z target in microns from origin")
	gotoCmd.Flags().Float64VarP(&gotoSpeed, "speed", "s", 0, "speed in microns/second, 0 for immediate")
	rootCmd.AddCommand(gotoCmd)
}
