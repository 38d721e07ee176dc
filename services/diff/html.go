// Copyright (C) 2026 PSScript AI (dev@psscript.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package diff

import (
	"fmt"
	"html"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// diffTableStyle mirrors the classes UIs already theme: diff_add for
// inserts, diff_sub for deletes, diff_chg for changes.
const diffTableStyle = `<style>
.diff-table { font-family: 'Consolas', 'Monaco', monospace; font-size: 13px; border-collapse: collapse; width: 100%; }
.diff-table td { padding: 2px 8px; border: 1px solid #ddd; vertical-align: top; }
.diff-table .diff_header { background-color: #f7f7f7; text-align: center; }
.diff-table .diff_next { background-color: #f7f7f7; }
.diff-table .diff_add { background-color: #e6ffec; }
.diff-table .diff_chg { background-color: #fff3cd; }
.diff-table .diff_sub { background-color: #ffebe9; }
</style>`

// generateHTMLDiff renders a side-by-side table: line number and content
// for the original on the left, the improved version on the right.
func (g *Generator) generateHTMLDiff(opcodes []difflib.OpCode, original, improved []string) string {
	var sb strings.Builder
	sb.WriteString(diffTableStyle)
	sb.WriteString("\n<table class=\"diff-table\">\n")
	sb.WriteString("<tr><td class=\"diff_header\" colspan=\"2\">Original</td><td class=\"diff_header\" colspan=\"2\">Improved</td></tr>\n")

	for _, op := range opcodes {
		switch op.Tag {
		case 'e':
			for k := 0; k < op.I2-op.I1; k++ {
				writeRow(&sb, "", op.I1+k+1, original[op.I1+k], op.J1+k+1, improved[op.J1+k])
			}
		case 'r':
			oldSpan := op.I2 - op.I1
			newSpan := op.J2 - op.J1
			span := oldSpan
			if newSpan > span {
				span = newSpan
			}
			for k := 0; k < span; k++ {
				oldNum, oldLine := 0, ""
				if k < oldSpan {
					oldNum, oldLine = op.I1+k+1, original[op.I1+k]
				}
				newNum, newLine := 0, ""
				if k < newSpan {
					newNum, newLine = op.J1+k+1, improved[op.J1+k]
				}
				writeRow(&sb, "diff_chg", oldNum, oldLine, newNum, newLine)
			}
		case 'd':
			for k := op.I1; k < op.I2; k++ {
				writeRow(&sb, "diff_sub", k+1, original[k], 0, "")
			}
		case 'i':
			for k := op.J1; k < op.J2; k++ {
				writeRow(&sb, "diff_add", 0, "", k+1, improved[k])
			}
		}
	}

	sb.WriteString("</table>\n")
	return sb.String()
}

func writeRow(sb *strings.Builder, class string, oldNum int, oldLine string, newNum int, newLine string) {
	classAttr := ""
	if class != "" {
		classAttr = fmt.Sprintf(" class=%q", class)
	}
	sb.WriteString("<tr>")
	writeCell(sb, classAttr, oldNum, oldLine)
	writeCell(sb, classAttr, newNum, newLine)
	sb.WriteString("</tr>\n")
}

func writeCell(sb *strings.Builder, classAttr string, num int, line string) {
	numText := ""
	if num > 0 {
		numText = fmt.Sprintf("%d", num)
	}
	content := html.EscapeString(strings.TrimRight(line, " \t\r\n"))
	fmt.Fprintf(sb, "<td%s>%s</td><td%s>%s</td>", classAttr, numText, classAttr, content)
}
