package lsp

import (
	"fortio.org/safecast"

	"tiplens/internal/annotate"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

func safeInt(n uint32) int {
	v, err := safecast.Conv[int](n)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return v
}

func toPosition(pt annotate.Point) position {
	return position{Line: safeUint32(pt.Line), Character: safeUint32(pt.Character)}
}

func toRange(r annotate.Region) lspRange {
	return lspRange{Start: toPosition(r.Start), End: toPosition(r.End)}
}

func toPoint(pos position) annotate.Point {
	return annotate.Point{Line: safeInt(pos.Line), Character: safeInt(pos.Character)}
}

func toDiagnostics(diags []annotate.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, lspDiagnostic{
			Range:    toRange(d.Region),
			Severity: int(d.Severity),
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}
