/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"bytes"

	"github.com/tsawler/tabula/format"
)

const sniffWindow = 4096

// Sniff guesses the format from content. PDF and DOCX are recognized by
// their container signatures, FDX by a FinalDraft root element near the
// start of the data.
func Sniff(data []byte) (Format, bool) {
	switch f, err := format.DetectFromReader(bytes.NewReader(data), int64(len(data))); {
	case err != nil:
		// not a readable container; fall through to the text checks
	case f == format.PDF:
		return PDF, true
	case f == format.DOCX:
		return DOCX, true
	}
	head := data
	if len(head) > sniffWindow {
		head = head[:sniffWindow]
	}
	if bytes.Contains(head, []byte("<FinalDraft")) {
		return FDX, true
	}
	return "", false
}
