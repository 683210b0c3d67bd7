package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/onebpc/onebpc/arch"
	"github.com/onebpc/onebpc/export"
	"github.com/onebpc/onebpc/memmap"
	"github.com/onebpc/onebpc/note"
	"github.com/onebpc/onebpc/preproc"
	"github.com/onebpc/onebpc/token"
	"github.com/onebpc/onebpc/watch"
)

func main() {
	var output string
	var labels bool
	var level string
	var spread bool
	var wrap int
	var addresses bool
	var src bool
	var tokenNotes bool
	var hashtags bool
	var follow bool
	var exportPath string

	flag.StringVar(&output, "o", "compiled.txt", "Output file")
	flag.BoolVar(&labels, "labels", false, "Show labels in the output")
	flag.StringVar(&level, "note-level", "", "Minimum note level to display (error, warning, comment, info)")
	flag.BoolVar(&spread, "spread-notes", false, "Allow notes to be spread over multiple lines")
	flag.IntVar(&wrap, "word-wrap", 0, "Word wrap limit for notes")
	flag.BoolVar(&addresses, "addresses", false, "Add address numbers to the output")
	flag.BoolVar(&src, "src", false, "Show the source text of each token in the output")
	flag.BoolVar(&tokenNotes, "token-notes", false, "Add token notes to the output")
	flag.BoolVar(&hashtags, "hashtags", false, "Use '#' for 1s and '-' for 0s in the binary output")
	flag.BoolVar(&follow, "watch", false, "Automatically recompile on source file changes")
	flag.StringVar(&exportPath, "export", "", "Also export the memory map as JSON to this path")

	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("%v: Expected exactly one source file, got: %v", os.Args[0], flag.Args())
	}
	source := flag.Arg(0)

	var threshold note.Severity
	if level != "" {
		parsed, err := note.ParseSeverity(level)
		if err != nil {
			log.Fatalf("%v: %v", os.Args[0], err)
		}
		threshold = parsed
	}

	if wrap != 0 && wrap < 40 {
		log.Fatalf("%v: Word wrap limit must be at least 40.", os.Args[0])
	}

	opts := export.Options{
		ShowLabels:     labels,
		NoteLevel:      threshold,
		SpreadNotes:    spread,
		WordWrapLimit:  wrap,
		AddressNumbers: addresses,
		ShowTokenSrc:   src,
		TokenNotes:     tokenNotes,
		Hashtags:       hashtags,
	}

	compile := func() (failed bool, err error) {
		start := time.Now()

		text, err := os.ReadFile(source)
		if err != nil {
			return
		}

		tokens := token.Tokenize(string(text))
		tokens = preproc.Preprocess(tokens)
		tokens = token.Normalize(tokens)
		mm := memmap.New(arch.Default(), tokens)

		err = os.WriteFile(output, []byte(export.Render(mm, opts)+"\n"), 0o644)
		if err != nil {
			return
		}

		if exportPath != "" {
			var ouf *os.File
			ouf, err = os.Create(exportPath)
			if err != nil {
				return
			}
			err = export.WriteJSON(mm, ouf)
			ouf.Close()
			if err != nil {
				return
			}
		}

		fmt.Println(export.Summary(mm, threshold, wrap))
		fmt.Printf("Finished in %.4f seconds.\n", time.Since(start).Seconds())

		failed = mm.Failed()
		return
	}

	failed, err := compile()
	if err != nil {
		log.Fatalf("%v: %v", source, err)
	}

	if !follow {
		if failed {
			os.Exit(1)
		}
		return
	}

	fmt.Println("Watching for changes...")
	err = watch.Watch(context.Background(), source, watch.DefaultInterval, func() error {
		fmt.Println("\nSource file changed, recompiling...")
		if _, err := compile(); err != nil {
			return err
		}
		fmt.Println("Watching for changes...")
		return nil
	})
	if err != nil {
		log.Fatalf("%v: %v", source, err)
	}
}
