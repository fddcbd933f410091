package reconciler

import (
	"github.com/agentstation/ordersync/pkg/allocate"
	"github.com/agentstation/ordersync/pkg/differ"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/payment"
)

type options struct {
	allocator  *allocate.Calculator
	classifier *payment.Classifier
	differ     differ.Differ
	sequence   Sequence
	highWater  int64
}

func defaultOptions() (*options, error) {
	classifier, err := payment.New()
	if err != nil {
		return nil, err
	}
	return &options{
		allocator:  allocate.New(),
		classifier: classifier,
		differ:     differ.New(),
	}, nil
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithAllocator sets the ratio split calculator.
func WithAllocator(a *allocate.Calculator) Option {
	return func(o *options) error {
		if a == nil {
			return &errors.ValidationError{Field: "allocator", Message: "cannot be nil"}
		}
		o.allocator = a
		return nil
	}
}

// WithClassifier sets the payment classifier.
func WithClassifier(c *payment.Classifier) Option {
	return func(o *options) error {
		if c == nil {
			return &errors.ValidationError{Field: "classifier", Message: "cannot be nil"}
		}
		o.classifier = c
		return nil
	}
}

// WithDiffer sets the differ used to build the changeset.
func WithDiffer(d differ.Differ) Option {
	return func(o *options) error {
		if d == nil {
			return &errors.ValidationError{Field: "differ", Message: "cannot be nil"}
		}
		o.differ = d
		return nil
	}
}

// WithSequence supplies the surrogate id generator. Without it each merge
// counts up from the larger of the existing maximum id and the high-water
// mark.
func WithSequence(seq Sequence) Option {
	return func(o *options) error {
		if seq == nil {
			return &errors.ValidationError{Field: "sequence", Message: "cannot be nil"}
		}
		o.sequence = seq
		return nil
	}
}

// WithHighWater sets the largest surrogate id ever assigned, so ids of
// rows that have since vanished are not handed out again.
func WithHighWater(id int64) Option {
	return func(o *options) error {
		if id < 0 {
			return errors.NewValidationError("high_water", id, "cannot be negative")
		}
		o.highWater = id
		return nil
	}
}
