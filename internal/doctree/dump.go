package doctree

import (
	"fmt"
	"strings"
)

// Dump renders t as an indented outline.
func Dump(t Tree) string {
	var sb strings.Builder
	dump(&sb, t, 0)
	return sb.String()
}

func dump(sb *strings.Builder, t Tree, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, n := range t {
		switch v := n.(type) {
		case Text:
			fmt.Fprintf(sb, "%stext %q\n", pad, v.Value)
		case TagPlaceholder:
			if v.Format != "" {
				fmt.Fprintf(sb, "%stag %s!%s\n", pad, v.Path, v.Format)
			} else {
				fmt.Fprintf(sb, "%stag %s\n", pad, v.Path)
			}
		case ReferenceMarker:
			fmt.Fprintf(sb, "%sref(%s) %s\n", pad, v.Syntax, v.Target)
		case ConditionalMarker:
			fmt.Fprintf(sb, "%s%% %s %s\n", pad, v.Op, v.Condition)
		case *ConditionalBlock:
			fmt.Fprintf(sb, "%sif %s [depth %d]\n", pad, v.Condition, v.Depth)
			dump(sb, v.Then, indent+1)
			if v.HasElse {
				fmt.Fprintf(sb, "%selse\n", pad)
				dump(sb, v.Else, indent+1)
			}
			fmt.Fprintf(sb, "%sendif\n", pad)
		case TableMarker:
			fmt.Fprintf(sb, "%s%% %s\n", pad, v.Op)
		case *TableNode:
			fmt.Fprintf(sb, "%stable %d rows [depth %d]\n", pad, len(v.Rows), v.Depth)
			for i, row := range v.Rows {
				fmt.Fprintf(sb, "%s  row %d\n", pad, i)
				for j, cell := range row {
					fmt.Fprintf(sb, "%s    cell %d\n", pad, j)
					dump(sb, cell, indent+3)
				}
			}
		case ContentBlockBoundary:
			edge := "start"
			if v.Edge == EdgeEnd {
				edge = "end"
			}
			fmt.Fprintf(sb, "%ssection %s %s\n", pad, v.Name, edge)
		case UnresolvedReference:
			fmt.Fprintf(sb, "%sunresolved %s: %s\n", pad, v.ID, v.Reason)
		}
	}
}
