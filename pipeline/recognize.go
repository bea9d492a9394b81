package pipeline

import (
	"RegionOcrServer/imgproc"
	"context"
	"fmt"
	"sync"
)

type job struct {
	index int
	crop  Crop
}

type jobResult struct {
	index int
	text  string
	err   error
}

// recognizeAll runs the recognizer over crops on at most a.opts.Workers goroutines.
// texts[i] always belongs to crops[i]. The first failure cancels the remaining jobs and
// no texts are returned.
func (a *Analyzer) recognizeAll(ctx context.Context, crops []Crop) ([]string, error) {
	texts := make([]string, len(crops))
	if len(crops) == 0 {
		return texts, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job)
	results := make(chan jobResult, len(crops))
	var wg sync.WaitGroup
	for w := 0; w < min(a.opts.Workers, len(crops)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				text, err := a.recognizeOne(ctx, j.crop)
				results <- jobResult{index: j.index, text: text, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i, c := range crops {
			select {
			case jobs <- job{index: i, crop: c}:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	done := 0
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("recognize crop %d: %w", r.index, r.err)
				cancel()
			}
			continue
		}
		texts[r.index] = r.text
		done++
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if done != len(crops) {
		return nil, fmt.Errorf("recognize: %w", context.Cause(ctx))
	}
	return texts, nil
}

func (a *Analyzer) recognizeOne(ctx context.Context, c Crop) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recognizer panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, w := a.rec.InputSize()
	indices, err := a.rec.Recognize(ctx, imgproc.Resize(c.Pixels, h, w))
	if err != nil {
		return "", err
	}
	if len(indices) > a.opts.MaxLength {
		indices = indices[:a.opts.MaxLength]
	}
	return a.opts.Table.Decode(indices), nil
}
