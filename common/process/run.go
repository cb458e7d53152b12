// Copyright 2024 StreamNative, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package process

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Run starts the process returned by startProcess, together with the
// optional profiling server, and blocks until ctx is done. Both are closed
// before returning.
func Run(ctx context.Context, startProcess func(ctx context.Context) (io.Closer, error)) error {
	profiler := RunProfiling()
	process, err := startProcess(ctx)
	if err != nil {
		_ = profiler.Close()
		return errors.Wrap(err, "failed to start the process")
	}

	<-ctx.Done()

	err = multierr.Combine(
		process.Close(),
		profiler.Close(),
	)
	if err != nil {
		slog.Error(
			"Failed when shutting down",
			slog.Any("error", err),
		)
		return err
	}
	slog.Info("Shutdown Completed")
	return nil
}
