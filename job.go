package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yarkm13/fetchopus/transfer"
)

const (
	statusPending    = 0
	statusDone       = 1
	statusFailed     = 2
	statusInProgress = -1
)

// JobItem represents a single URL to fetch
type JobItem struct {
	URL    string
	Status int
}

// Job holds the entire batch
type Job struct {
	TargetDir string
	Items     []JobItem
	mutex     sync.Mutex
	jobFile   string
}

func parseJobFile(filename string) (*Job, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	job := &Job{jobFile: filename}
	lineNum := 0
	for scanner.Scan() {
		line := scanner.Text()
		if lineNum == 0 {
			job.TargetDir = line
		} else {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 || parts[1] == "" {
				continue
			}
			status := statusPending // in progress and failed items are retried
			if parts[0] == strconv.Itoa(statusDone) {
				status = statusDone
			}
			job.Items = append(job.Items, JobItem{URL: parts[1], Status: status})
		}
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if job.TargetDir == "" {
		return nil, fmt.Errorf("job file %s has no target directory", filename)
	}
	return job, nil
}

// readURLList reads one URL per line, skipping blanks and # comments.
func readURLList(filename string) ([]JobItem, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []JobItem
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, JobItem{URL: line, Status: statusPending})
	}
	return items, scanner.Err()
}

func saveJobFile(job *Job) error {
	job.mutex.Lock()
	defer job.mutex.Unlock()

	tmp := job.jobFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, job.TargetDir)
	for _, item := range job.Items {
		fmt.Fprintf(w, "%d:%s\n", item.Status, item.URL)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, job.jobFile)
}

// counts returns the number of finished and failed items.
func (job *Job) counts() (done, failed int) {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	for _, item := range job.Items {
		switch item.Status {
		case statusDone:
			done++
		case statusFailed:
			failed++
		}
	}
	return done, failed
}

// dataSourceID groups URLs that share credentials: same scheme, user and host.
func dataSourceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.User.Username() + "@" + u.Host
}

func downloadWorker(ctx context.Context, job *Job, factory *transfer.Factory, wg *sync.WaitGroup, index int) {
	defer wg.Done()
	log := logrus.WithField("worker", index)

	for ctx.Err() == nil {
		var item *JobItem

		job.mutex.Lock()
		for i := range job.Items {
			if job.Items[i].Status == statusPending {
				job.Items[i].Status = statusInProgress
				item = &job.Items[i]
				break
			}
		}
		job.mutex.Unlock()

		if item == nil {
			return // No more jobs
		}

		status := fetchItem(ctx, log, job.TargetDir, item.URL, factory)

		job.mutex.Lock()
		item.Status = status
		job.mutex.Unlock()
	}
}

func fetchItem(ctx context.Context, log *logrus.Entry, targetDir, rawURL string, factory *transfer.Factory) int {
	log = log.WithField("url", rawURL)

	localPath, err := resolveOutputPath(rawURL, targetDir)
	if err != nil {
		log.WithError(err).Error("Cannot resolve output path")
		return statusFailed
	}

	t, err := factory.New(transfer.Params{URL: rawURL, DataSourceID: dataSourceID(rawURL)})
	if err != nil {
		log.WithError(err).Error("Cannot prepare transfer")
		return statusFailed
	}

	log.WithField("path", localPath).Info("Downloading")
	ok, output := t.Run(ctx, localPath, false)
	if !ok && ctx.Err() != nil {
		log.Warn("Transfer interrupted, will resume")
		return statusPending
	}
	if !ok {
		log.WithField("output", strings.TrimSpace(output)).Error("Transfer failed")
		return statusFailed
	}
	return statusDone
}
