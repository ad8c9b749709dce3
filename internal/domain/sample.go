/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Sample returns the bundled starter screenplay. Each call builds a new
// document with fresh ids.
func Sample() *Document {
	return NewDocument("Signal From The Garage", []Line{
		NewLine(Scene, "INT. GARAGE - DAY"),
		NewLine(Action, "Dust hangs in the sunlight as a DIY film crew tweaks their lights."),
		NewLine(Character, "BILL"),
		NewLine(Parenthesis, "(smirking)"),
		NewLine(Dialogue, "We need to see all of the facts."),
		NewLine(Character, "TED"),
		NewLine(Dialogue, "We don't have time."),
		NewLine(Action, "A phone buzzes, the shot shaky but alive."),
		NewLine(Shot, "CLOSE ON PHONE"),
		NewLine(Dialogue, "Just roll."),
		NewLine(Transition, "CUT TO:"),
		NewLine(Scene, "EXT. CITY ROOFTOP - NIGHT"),
		NewLine(Action, "Neon hums as the crew captures the skyline."),
		NewLine(NewAct, "ACT II"),
		NewLine(Action, "Momentum builds and the edit takes shape."),
		NewLine(EndAct, "END ACT II"),
	})
}
