/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"govn/internal/storage"
)

// TranscriptText writes entries as plain text, one paragraph per line.
// Continuation lines of multi-line text are indented under the speaker.
func TranscriptText(w io.Writer, entries []storage.Entry, timestamps bool) error {
	if len(entries) == 0 {
		return ErrEmptyTranscript
	}
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if timestamps {
			fmt.Fprintf(bw, "[%s] ", e.TS.Local().Format("15:04:05"))
		}
		text := Plain(e.What)
		if e.Who != "" {
			fmt.Fprintf(bw, "%s: ", e.Who)
			text = strings.ReplaceAll(text, "\n", "\n"+strings.Repeat(" ", len(e.Who)+2))
		}
		fmt.Fprintf(bw, "%s\n\n", text)
	}
	return bw.Flush()
}
