package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/yarkm13/fetchopus/internal/config"
	"github.com/yarkm13/fetchopus/internal/logger"
	"github.com/yarkm13/fetchopus/mechanism"
	"github.com/yarkm13/fetchopus/transfer"
)

// optionsFlag collects repeated -opt key=value flags in order.
type optionsFlag struct {
	opts transfer.Options
}

func (f *optionsFlag) String() string {
	pairs := make([]string, 0, f.opts.Len())
	for _, k := range f.opts.Keys() {
		pairs = append(pairs, k+"="+f.opts.String(k))
	}
	return strings.Join(pairs, ",")
}

func (f *optionsFlag) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok || k == "" {
		return fmt.Errorf("option %q is not key=value", value)
	}
	f.opts.Set(k, v)
	return nil
}

func main() {
	cfg := config.New()

	urlFlag := flag.String("url", "", "Source URL (ftp://, scp://, sftp://, http(s)://, s3://, file://)")
	outFlag := flag.String("out", "", "Output file for -url")
	mechanismFlag := flag.String("mechanism", "", "Mechanism name, inferred from the URL when empty")
	var optsFlag optionsFlag
	flag.Var(&optsFlag, "opt", "Mechanism option key=value, repeatable")
	offsetFlag := flag.Int64("offset", 0, "Start of a partial transfer")
	lengthFlag := flag.Int64("length", 0, "Length of a partial transfer, required with -offset")
	sourceFlag := flag.String("source", "", "Data source id; transfers sharing it prompt once")
	printFlag := flag.Bool("print", false, "Write the fetched data to stdout instead of -out")
	quietFlag := flag.Bool("quiet", false, "Do not display mechanism output")

	urlsFlag := flag.String("urls", "", "File with one URL per line for a batch job")
	targetFlag := flag.String("target-dir", "", "Target directory for a batch job")
	threadsFlag := flag.Int("threads", cfg.Threads(), "Number of download threads")
	jobFlag := flag.String("job", "", "Resume from job file")
	yesFlag := flag.Bool("yes", false, "Do not ask for confirmation before a batch job")
	logLevelFlag := flag.String("log-level", cfg.LogLevel(), "Log level")
	flag.Parse()

	logger.Init(*logLevelFlag, cfg.LogFile())

	registry := mechanism.NewRegistry(
		mechanism.WithTimeout(cfg.Timeout()),
		mechanism.WithInsecureHostKeys(cfg.InsecureHostKeys()),
		mechanism.WithS3(cfg.S3Region(), cfg.S3Endpoint()),
	)
	factory := transfer.NewFactory(registry, transfer.WithTempDir(cfg.TempDir()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch {
	case *jobFlag != "" || *urlsFlag != "":
		err = runBatch(ctx, factory, registry.Env().Prompter, *jobFlag, *urlsFlag, *targetFlag, *threadsFlag, *yesFlag)
	case *urlFlag != "" || *mechanismFlag != "":
		var rng *transfer.Range
		rng, err = partialRange(*offsetFlag, *lengthFlag)
		if err != nil {
			break
		}
		err = runSingle(ctx, factory, transfer.Params{
			URL:          *urlFlag,
			Mechanism:    *mechanismFlag,
			Options:      optsFlag.opts,
			Range:        rng,
			DataSourceID: *sourceFlag,
		}, *outFlag, *printFlag, !*quietFlag)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "fetchopus: %v\n", err)
		os.Exit(1)
	}
}

// partialRange builds the range selected by -offset and -length; both unset
// means the whole file.
func partialRange(offset, length int64) (*transfer.Range, error) {
	if offset == 0 && length == 0 {
		return nil, nil
	}
	if length <= 0 {
		return nil, errors.New("-offset needs a positive -length")
	}
	return &transfer.Range{Offset: offset, Length: length}, nil
}

func runSingle(ctx context.Context, factory *transfer.Factory, params transfer.Params, out string, toStdout, display bool) error {
	if !toStdout && out == "" {
		return errors.New("missing required parameter: -out (or -print)")
	}

	t, err := factory.New(params)
	if err != nil {
		return err
	}
	logrus.WithField("function", "runSingle").Debug(t.String())

	if toStdout {
		data, err := t.GetData(ctx, false)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	ok, output := t.Run(ctx, out, display)
	if !ok {
		if !display {
			fmt.Fprint(os.Stderr, output)
		}
		return &transfer.TransferFailedError{URL: t.URL()}
	}
	return nil
}

func runBatch(ctx context.Context, factory *transfer.Factory, prompter mechanism.Prompter, jobFile, urlsFile, targetDir string, threads int, yes bool) error {
	var job *Job
	var err error
	if jobFile != "" {
		job, err = parseJobFile(jobFile)
		if err != nil {
			return fmt.Errorf("error reading job file: %w", err)
		}
	} else {
		if targetDir == "" {
			return errors.New("missing required parameter: -target-dir")
		}
		items, err := readURLList(urlsFile)
		if err != nil {
			return fmt.Errorf("error reading url list: %w", err)
		}
		job = &Job{
			TargetDir: targetDir,
			Items:     items,
			jobFile:   time.Now().Format("20060102150405") + ".dljob",
		}
	}

	if !yes {
		ok, err := promptToContinue(job, prompter)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	if err := saveJobFile(job); err != nil {
		return fmt.Errorf("error saving job file: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"job":   job.jobFile,
		"items": len(job.Items),
	}).Info("Job started")

	// Background job saver
	autosaveCtx, cancelAutosave := context.WithCancel(ctx)
	defer cancelAutosave()
	go func() {
		ticker := time.NewTicker(time.Second * 2)
		defer ticker.Stop()
		for {
			select {
			case <-autosaveCtx.Done():
				return
			case <-ticker.C:
				if err := saveJobFile(job); err != nil {
					logrus.WithError(err).Warn("Autosave failed")
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go downloadWorker(ctx, job, factory, &wg, i+1)
	}
	wg.Wait()
	cancelAutosave()

	// items interrupted mid-transfer are retried on resume
	if err := saveJobFile(job); err != nil {
		return fmt.Errorf("error saving job file: %w", err)
	}

	done, failed := job.counts()
	logrus.WithFields(logrus.Fields{
		"job":    job.jobFile,
		"done":   done,
		"failed": failed,
	}).Info("Job finished")
	if failed > 0 {
		return fmt.Errorf("%d of %d transfers failed, resume with -job %s", failed, len(job.Items), job.jobFile)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted, resume with -job %s", job.jobFile)
	}
	color.New(color.FgGreen).Println("All downloads completed.")
	return nil
}
