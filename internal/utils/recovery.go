// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utils

import "golang.org/x/xerrors"

// FormatRecoveredError is used in cases where a panic/recover receives an
// object which is potentially an error that could be wrapped, instead of
// formatted, so that callers can see it may be a memory error or so on.
func FormatRecoveredError(msg string, rec interface{}) error {
	if err, ok := rec.(error); ok {
		return xerrors.Errorf("%s: %w", msg, err)
	}
	return xerrors.Errorf("%s: %v", msg, rec)
}
