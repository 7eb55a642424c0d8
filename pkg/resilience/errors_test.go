// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "transient", err: NewTransient("rate limited"), want: CategoryTransient},
		{name: "recoverable", err: NewRecoverable("bad json", "quote the keys"), want: CategoryRecoverable},
		{name: "permanent", err: NewPermanent("unauthorized"), want: CategoryPermanent},
		{name: "catastrophic", err: NewCatastrophic("sandbox escape"), want: CategoryCatastrophic},
		{name: "plain error", err: errors.New("boom"), want: CategoryPermanent},
		{name: "context deadline", err: context.DeadlineExceeded, want: CategoryPermanent},
		{name: "wrapped transient", err: fmt.Errorf("calling llm: %w", NewTransient("429")), want: CategoryTransient},
		{name: "wrap helper", err: Wrap(CategoryCatastrophic, errors.New("disk gone")), want: CategoryCatastrophic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(CategoryTransient, nil))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CategoryTransient, cause)

	assert.Equal(t, "transient error: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	withMsg := &Error{Category: CategoryPermanent, Message: "fetch failed", Err: cause}
	assert.Equal(t, "permanent error: fetch failed: connection reset", withMsg.Error())
}

func TestWithDetailCopies(t *testing.T) {
	base := NewTransient("timeout")
	detailed := base.WithDetail("status", 504)

	assert.Nil(t, base.Detail)
	assert.Equal(t, 504, detailed.Detail["status"])
	assert.Equal(t, CategoryTransient, detailed.Category)
}

func TestCircuitOpenErrorIsTransient(t *testing.T) {
	err := circuitOpenError("llm")

	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, ErrCircuitOpen)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "llm", ce.Detail["circuit"])
}

func TestParseCategory(t *testing.T) {
	for _, name := range []string{"transient", "Recoverable", " permanent ", "CATASTROPHIC"} {
		c, err := ParseCategory(name)
		require.NoError(t, err, name)
		assert.NotEqual(t, "", c.String())
	}

	c, err := ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryPermanent, c)

	_, err = ParseCategory("fatal")
	assert.Error(t, err)
}

func TestInvokeRecoversPanic(t *testing.T) {
	_, err := invoke(context.Background(), func(context.Context) (string, error) {
		panic("nil map write")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActionPanicked)
	assert.Equal(t, CategoryPermanent, Classify(err))
	assert.Contains(t, err.Error(), "nil map write")
}

func TestInvokeNilAction(t *testing.T) {
	_, err := invoke(context.Background(), nil)
	assert.Equal(t, CategoryPermanent, Classify(err))
}
