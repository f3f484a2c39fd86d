package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/google/renameio"
	"github.com/mrjoshuak/go-cubit"
	"github.com/mrjoshuak/go-cubit/server"
	log "github.com/sirupsen/logrus"
)

func init() {
	if os.Getenv("DEBUG") == "1" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportCaller(true)
	formatter := &log.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: log.FieldMap{
			log.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	log.SetFormatter(formatter)
}

// caller returns string presentation of log caller which is formatted as
// `/path/to/file.go:line_number`. e.g. `/cmd/cubit/main.go:25`
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d", strings.TrimPrefix(f.File, p), f.Line)
	}
}

// exit codes
const (
	rcOK    = 0
	rcIO    = 5
	rcUsage = 22
	rcCodec = 42
)

type Opts struct {
	Compress   bool
	Decompress bool
	Info       bool
	Inspect    bool
	Serve      bool
	Input      string
	Output     string
	Seed       string `docopt:"-s"`
	Trials     string `docopt:"-t"`
	Workers    string `docopt:"-w"`
	Codec      string `docopt:"-c"`
	Blocks     string `docopt:"-n"`
	Addr       string `docopt:"-a"`
	Legend     bool   `docopt:"-l"`
	Help       bool   `docopt:"--help"`
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {

	usage := `cubit

Usage:
  cubit compress [-s <seed>] [-t <trials>] [-w <workers>] [-c <codec>] <input> <output>
  cubit decompress [-w <workers>] [-c <codec>] <input> <output>
  cubit info <input>
  cubit inspect [-s <seed>] [-t <trials>] [-n <blocks>] [-l] <input>
  cubit serve [-s <seed>] [-t <trials>] [-c <codec>] [-a <addr>]

Options:
  -s <seed>     Search seed, 0 picks a random one [default: 0].
  -t <trials>   Search trials per block [default: 100].
  -w <workers>  Parallel block workers, 0 uses every CPU [default: 0].
  -c <codec>    Codec for the metadata and padding streams [default: zlib].
  -n <blocks>   Number of blocks to show [default: 4].
  -a <addr>     Listen address [default: :8080].
  -l            Print the symbol legend.
  -h --help     Show this screen.
  --version     Show version.
`
	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			if err == nil {
				fmt.Println(usage)
			}
		},
	}
	o, err := parser.ParseArgs(usage, os.Args[1:], cubit.Version)
	if err != nil {
		log.Error(err)
		return rcUsage
	}
	var opts Opts
	err = o.Bind(&opts)
	if err != nil {
		log.Error(err)
		return rcUsage
	}
	log.Debug(opts)
	if opts.Help {
		return rcOK
	}

	copts, err := opts.options()
	if err != nil {
		log.Error(err)
		return rcUsage
	}

	switch true {
	case opts.Compress:
		buf, err := os.ReadFile(opts.Input)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		out, stats, err := cubit.CompressStats(context.Background(), buf, copts)
		if err != nil {
			log.Error(err)
			return rcCodec
		}
		err = renameio.WriteFile(opts.Output, out, 0644)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		fmt.Printf("%s: %d bytes, %d blocks, %d fallbacks\n", opts.Input, len(buf), stats.Blocks, stats.Fallbacks)
	case opts.Decompress:
		buf, err := os.ReadFile(opts.Input)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		out, stats, err := cubit.DecompressStats(context.Background(), buf, copts)
		if err != nil {
			log.Error(err)
			return rcCodec
		}
		err = renameio.WriteFile(opts.Output, out, 0644)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		fmt.Printf("%s: %d bytes, %d blocks, %d fallbacks\n", opts.Output, len(out), stats.Blocks, stats.Fallbacks)
	case opts.Info:
		buf, err := os.ReadFile(opts.Input)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		h, err := cubit.GetInfo(buf)
		if err != nil {
			log.Error(err)
			return rcCodec
		}
		fmt.Printf("original size: %d\n", h.OriginalSize)
		fmt.Printf("blocks: %d\n", h.NumBlocks())
		fmt.Printf("metadata: %d bytes\n", h.MetadataLength)
		fmt.Printf("padding: %d bytes\n", h.PaddingLength)
		reps := 0
		if payload := cubit.HeaderSize + int64(h.MetadataLength) + int64(h.PaddingLength); payload <= int64(len(buf)) {
			reps = len(buf) - int(payload)
		}
		fmt.Printf("representatives: %d bytes\n", reps)
	case opts.Inspect:
		buf, err := os.ReadFile(opts.Input)
		if err != nil {
			log.Error(err)
			return rcIO
		}
		limit, err := strconv.Atoi(opts.Blocks)
		if err != nil {
			log.Error(err)
			return rcUsage
		}
		traces, err := cubit.Inspect(context.Background(), buf, copts, limit)
		if err != nil {
			log.Error(err)
			return rcCodec
		}
		if opts.Legend {
			fmt.Print(cubit.Legend())
		}
		for _, tr := range traces {
			printTrace(tr)
		}
	case opts.Serve:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := server.ListenAndServe(ctx, opts.Addr, copts)
		if err != nil {
			log.Error(err)
			return rcIO
		}
	}
	return rcOK
}

// options converts the string flags into library options.
func (opts Opts) options() (copts cubit.Options, err error) {
	copts = cubit.DefaultOptions()
	if opts.Seed != "" {
		copts.Seed, err = strconv.ParseUint(opts.Seed, 10, 64)
		if err != nil {
			return copts, fmt.Errorf("seed: %w", err)
		}
	}
	if opts.Trials != "" {
		copts.Trials, err = strconv.Atoi(opts.Trials)
		if err != nil {
			return copts, fmt.Errorf("trials: %w", err)
		}
	}
	if opts.Workers != "" {
		copts.Workers, err = strconv.Atoi(opts.Workers)
		if err != nil {
			return copts, fmt.Errorf("workers: %w", err)
		}
	}
	if opts.Codec != "" {
		copts.Codec, err = cubit.ParseCodec(opts.Codec)
		if err != nil {
			return copts, err
		}
	}
	return copts, nil
}

func printTrace(tr cubit.BlockTrace) {
	res := tr.Result
	fmt.Printf("block %d: rep %02x, shifts %v, score %d, padding %d, %s\n",
		tr.Index, res.Representative, res.Meta.Shifts(), res.Score, tr.Padding, res.Status)
	if res.Err != nil {
		fmt.Printf("  error: %v\n", res.Err)
	}
	fmt.Print(cubit.RenderGrid(tr.Shifted, res.Meta.Shifts()))
}
