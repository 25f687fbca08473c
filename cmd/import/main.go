package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Bitsy-Chuck/crowdnet/nnet"
	"github.com/Bitsy-Chuck/crowdnet/vatic"
)

// Imports vatic bounding box annotations as per frame head point
// files. The text dump must already exist in the output directory.
func main() {
	frames := flag.String("frames", "", "directory with the extracted video frames")
	out := flag.String("out", "", "output directory")
	copyFrames := flag.Bool("copy", true, "copy annotated frame images to the output directory")
	flag.Parse()
	if flag.NArg() != 1 || *frames == "" || *out == "" {
		fmt.Println("Usage: import [opts] <video identifier>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	im := vatic.NewImporter(flag.Arg(0), *frames, *out)
	fmt.Println("importing", im.DumpPath())
	nnet.CheckErr(im.ImportDump(*copyFrames))
	fmt.Println("done")
}
