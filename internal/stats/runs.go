package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/paperlens/internal/model"
)

// RenderRuns prints stored runs, one per line, in the order given.
func RenderRuns(w io.Writer, runs []model.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs stored yet.")
		return err
	}
	tbl := newTextTable(
		column{title: "ID"},
		column{title: "Started"},
		column{title: "Topic", max: 40},
		column{title: "Provider"},
		column{title: "Papers", right: true},
		column{title: "Categories", right: true},
	)
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		topic := r.Topic
		if topic == "" {
			topic = "(default)"
		}
		tbl.add(
			id,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			topic,
			r.Provider,
			fmt.Sprintf("%d/%d", r.Fetched, r.Requested),
			strconv.Itoa(len(r.Categories)),
		)
	}
	return tbl.write(w)
}
