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
	"fmt"

	"github.com/sourcegraph/conc/panics"
)

// Action is a unit of work producing a string result. Failures should be
// *Error values so the resilience layers can classify them; anything else is
// treated as Permanent.
type Action func(ctx context.Context) (string, error)

// invoke runs action, converting a panic into a Permanent error.
func invoke(ctx context.Context, action Action) (result string, err error) {
	if action == nil {
		return "", NewPermanent("nil action")
	}
	var pc panics.Catcher
	pc.Try(func() { result, err = action(ctx) })
	if r := pc.Recovered(); r != nil {
		return "", &Error{
			Category: CategoryPermanent,
			Message:  fmt.Sprint(r.Value),
			Err:      ErrActionPanicked,
		}
	}
	return result, err
}
