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
	"github.com/jt05610/galvo"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "galvo",
	Short: "Exercise a simulated galvo mirror pair",
	Long: `galvo runs the motion planner against a simulated DAC backend so moves,
origin shifts, and cancellation recovery can be tried without hardware.`,
}

var (
	sampleRate float64
	gain       float64
	offset     float64
	maxCode    int
)

// table builds one shared calibration for the demo axes.
func table() galvo.Table {
	cal := galvo.Calibration{Gain: gain, Offset: offset, MinCode: 0, MaxCode: maxCode}
	return galvo.Table{"x": cal, "z": cal}
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Float64Var(&sampleRate, "rate", 1000, "stream sample rate in samples/s")
	rootCmd.PersistentFlags().Float64Var(&gain, "gain", 2.5, "calibration gain in codes/micron")
	rootCmd.PersistentFlags().Float64Var(&offset, "offset", 32768, "calibration offset code at 0 microns")
	rootCmd.PersistentFlags().IntVar(&maxCode, "max-code", 65535, "largest representable DAC code")
}
