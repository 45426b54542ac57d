package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lmips/lmips/emulator"
	"github.com/lmips/lmips/mips"
)

func main() {
	var compile string
	var output string
	var save bool
	var dump bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".s file to assemble")
	flag.StringVar(&output, "o", "a.bin", "Image output for -s")
	flag.BoolVar(&save, "s", false, "Save the assembled image, do not execute")
	flag.BoolVar(&dump, "d", false, "Dump the CPU state after the run")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	// Assemble a new program.
	if len(compile) != 0 {
		if flag.NArg() != 0 {
			log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
		}

		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &mips.Assembler{Verbose: verbose}
		for attr, val := range emu.Defines() {
			asm.Predefine(attr, val)
		}

		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if save {
			err = os.WriteFile(output, prog.Binary(), 0o644)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			return
		}

		emu.Program = prog
		emu.Reset()
	} else {
		// Execute a raw image.
		if flag.NArg() != 1 {
			log.Fatalf("usage: %v [-v] [-c file.s [-s [-o out.bin]]] [image.bin]", os.Args[0])
		}

		image, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			log.Fatalf("%v: %v", flag.Arg(0), err)
		}

		err = emu.LoadImage(image)
		if err != nil {
			log.Fatalf("%v: %v", flag.Arg(0), err)
		}
	}

	err := emu.Run()
	if err != nil {
		log.Fatal(err)
	}

	if dump {
		fmt.Print(emu.Cpu.String())
	}
}
