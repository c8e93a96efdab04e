package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/loader"
)

func newDisasmCmd(a *app) *cobra.Command {
	var start, count uint64

	cmd := &cobra.Command{
		Use:   "disasm <program>",
		Short: "Disassemble a program into a .yo style listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := loader.Load(args[0])
			if err != nil {
				return err
			}
			disassemble(a.out, image.Data, start, count)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&start, "start", 0, "first address to decode")
	cmd.Flags().Uint64Var(&count, "count", 0, "stop after this many lines (0 = whole image)")

	return cmd
}

// disassemble writes one line per instruction from start to the end of
// data. Bytes that do not decode are listed as .byte.
func disassemble(w io.Writer, data []byte, start, count uint64) {
	decoder := insts.NewDecoder()
	size := uint64(len(data))

	for pc, n := start, uint64(0); pc < size && (count == 0 || n < count); n++ {
		end := pc + insts.MaxLength
		if end > size {
			end = size
		}

		inst, err := decoder.Decode(pc, data[pc:end])
		if err != nil {
			text := fmt.Sprintf(".byte 0x%02x", data[pc])
			if errors.Is(err, insts.ErrTruncated) {
				text += " # truncated " + insts.Class(data[pc]>>4).String()
			}
			_, _ = fmt.Fprintf(w, "0x%03x: %-20x | %s\n", pc, data[pc:pc+1], text)
			pc++
			continue
		}

		length := inst.Info().Length
		_, _ = fmt.Fprintf(w, "0x%03x: %-20x | %s\n", pc, data[pc:pc+length],
			strings.TrimSpace(inst.String()))
		pc += length
	}
}
