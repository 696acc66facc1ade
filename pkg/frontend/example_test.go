// SPDX-License-Identifier: MIT
package frontend_test

import (
	"fmt"

	"microfeatures/pkg/frontend"
)

func ExampleFrontend_Process() {
	fe, err := frontend.NewDefault()
	if err != nil {
		panic(err)
	}
	defer fe.Close()

	chunk := make([]int16, fe.StepSize())
	for range 4 {
		out, err := fe.Process(chunk)
		if err != nil {
			panic(err)
		}
		fmt.Println(len(out.Features), out.SamplesRead, fe.State())
	}
	// Output:
	// 0 160 buffering
	// 0 160 buffering
	// 40 160 ready
	// 40 160 ready
}

func ExampleFrontend_ProcessInto() {
	cfg := frontend.DefaultConfig()
	cfg.Filterbank.NumChannels = 32
	fe, err := frontend.New(cfg)
	if err != nil {
		panic(err)
	}
	defer fe.Close()

	features := make([]float32, fe.NumChannels())
	chunk := make([]int16, fe.StepSize())
	for range 3 {
		n, _, err := fe.ProcessInto(chunk, features)
		if err != nil {
			panic(err)
		}
		fmt.Println(n)
	}
	// Output:
	// 0
	// 0
	// 32
}
