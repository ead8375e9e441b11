// Command flaca losslessly recompresses JPEG and PNG files in place.
//
// Usage:
//
//	flaca [options] <file-or-directory>...
//
// Directories are walked recursively. Each image is re-encoded in memory
// and overwritten only when the result is strictly smaller.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/deepteams/flaca"
)

func main() {
	iterations := flag.Uint("i", 0, "zopfli iterations (0 = size-based default)")
	noJPEG := flag.Bool("no-jpeg", false, "skip JPEG files")
	noPNG := flag.Bool("no-png", false, "skip PNG files")
	workers := flag.Int("j", runtime.NumCPU(), "parallel workers")
	verbose := flag.Bool("v", false, "report every file, not just the total")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: flaca [options] <file-or-directory>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *iterations > 0 {
		flaca.SetIterations(uint32(*iterations))
	}

	logger := log.New(os.Stderr, "flaca: ", 0)

	paths := gather(flag.Args(), *noJPEG, *noPNG, logger)
	if len(paths) == 0 {
		logger.Println("no qualifying images found")
		return
	}

	var before, after, saved atomic.Int64

	jobs := make(chan string)
	var wg sync.WaitGroup
	n := *workers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				in, err := os.ReadFile(path)
				if err != nil {
					logger.Printf("%s: %v", path, err)
					continue
				}
				before.Add(int64(len(in)))

				out, err := flaca.Optimize(in)
				if err != nil {
					logger.Printf("%s: %v", path, err)
					after.Add(int64(len(in)))
					continue
				}
				if out == nil {
					after.Add(int64(len(in)))
					continue
				}

				if err := os.WriteFile(path, out, 0o644); err != nil {
					logger.Printf("%s: %v", path, err)
					after.Add(int64(len(in)))
					continue
				}
				after.Add(int64(len(out)))
				saved.Add(int64(len(in) - len(out)))
				if *verbose {
					logger.Printf("%s: %d -> %d bytes", path, len(in), len(out))
				}
			}
		}()
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("%d images, %d -> %d bytes (%d saved)\n",
		len(paths), before.Load(), after.Load(), saved.Load())
}

// gather expands the argument list into candidate image paths, filtering by
// extension first and magic bytes later (at read time).
func gather(args []string, noJPEG, noPNG bool, logger *log.Logger) []string {
	want := func(path string) bool {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg":
			return !noJPEG
		case ".png":
			return !noPNG
		default:
			return false
		}
	}

	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			logger.Printf("%s: %v", arg, err)
			continue
		}
		if !info.IsDir() {
			if want(arg) {
				out = append(out, arg)
			}
			continue
		}
		filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && want(path) {
				out = append(out, path)
			}
			return nil
		})
	}
	return out
}
