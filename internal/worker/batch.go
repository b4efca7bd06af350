package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prahari-health/prahari/internal/model"
	"github.com/prahari-health/prahari/internal/pipeline"
)

// Validator runs one conversation through the validation pipeline
type Validator interface {
	Validate(ctx context.Context, input pipeline.Input) (*model.ValidationResult, error)
}

// ValidationJob wraps one conversation for the pool
type ValidationJob struct {
	Input     pipeline.Input
	Validator Validator
}

// Execute runs the validation
func (j *ValidationJob) Execute(ctx context.Context) Result {
	result, err := j.Validator.Validate(ctx, j.Input)
	return &ValidationOutcome{
		Input:  j.Input,
		Result: result,
		Error:  err,
	}
}

// ValidationOutcome pairs a conversation with its verdict
type ValidationOutcome struct {
	Input  pipeline.Input
	Result *model.ValidationResult
	Error  error
}

// Err implements Result
func (o *ValidationOutcome) Err() error {
	return o.Error
}

// BatchProcessor validates recorded conversations concurrently
type BatchProcessor struct {
	validator   Validator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(validator Validator, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 4
	}

	return &BatchProcessor{
		validator:   validator,
		concurrency: concurrency,
	}
}

// Process validates every input, at most concurrency at a time. Outcomes
// arrive in completion order; cancelling ctx abandons unfinished jobs.
func (b *BatchProcessor) Process(ctx context.Context, inputs []pipeline.Input) []*ValidationOutcome {
	if len(inputs) == 0 {
		return []*ValidationOutcome{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, input := range inputs {
		pool.Submit(&ValidationJob{Input: input, Validator: b.validator})
	}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pool.Shutdown()
		case <-stop:
		}
	}()

	results := pool.Wait()
	close(stop)

	outcomes := make([]*ValidationOutcome, len(results))
	for i, result := range results {
		outcomes[i] = result.(*ValidationOutcome)
	}

	return outcomes
}

// ProcessFile reads conversations from a file and validates them
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*ValidationOutcome, error) {
	inputs, err := ReadInputsFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	return b.Process(ctx, inputs), nil
}

// ReadInputsFromFile parses one conversation per line, pipe-separated:
//
//	user query|bot response|confidence
//
// The confidence field is optional. Blank lines and # comments are
// skipped, and duplicate lines are validated once.
func ReadInputsFromFile(path string) ([]pipeline.Input, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []pipeline.Input
	seen := make(map[string]bool)

	lineNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true

		input, err := ParseInputLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		inputs = append(inputs, input)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}

// ParseInputLine splits a query|response|confidence line into an Input
func ParseInputLine(line string) (pipeline.Input, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return pipeline.Input{}, fmt.Errorf("want query|response or query|response|confidence, got %d fields", len(parts))
	}

	input := pipeline.Input{
		UserQuery:   strings.TrimSpace(parts[0]),
		BotResponse: strings.TrimSpace(parts[1]),
	}
	if input.UserQuery == "" || input.BotResponse == "" {
		return pipeline.Input{}, fmt.Errorf("empty query or response")
	}

	if len(parts) == 3 && strings.TrimSpace(parts[2]) != "" {
		confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("parse confidence: %w", err)
		}
		if confidence < 0 || confidence > 1 {
			return pipeline.Input{}, fmt.Errorf("confidence %v out of range [0,1]", confidence)
		}
		input.BaselineConfidence = confidence
	}

	return input, nil
}
