package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/vkg"
)

// statsWeight is the weight of the newest frame in the running average.
const statsWeight = 0.1

// maxTimestamps bounds the number of nodes timed per frame.
const maxTimestamps = 128

// FrameStats times every recorded node with GPU timestamps. Each parity
// has its own query pool, read back once its fence has been waited on.
type FrameStats struct {
	pools [2]*vkg.QueryPool
	// Nodes timed by the last frame of each parity, in recording order.
	nodes  [2][]string
	order  []string
	avg    map[string]time.Duration
	total  time.Duration
	frames int
}

func newFrameStats(d *vkg.Device) (s *FrameStats, err error) {
	s = &FrameStats{avg: make(map[string]time.Duration)}
	for k := range s.pools {
		if s.pools[k], err = d.CreateQueryPool(fmt.Sprintf("timestamps.%d", k), maxTimestamps); err != nil {
			s.Destroy()
			return nil, err
		}
	}
	return s, nil
}

// collect folds the finished frame of parity k into the averages. The
// fence of k must have been waited on.
func (s *FrameStats) collect(k int) {
	names := s.nodes[k]
	if len(names) == 0 {
		return
	}
	ticks, ok := s.pools[k].Results()
	if !ok {
		return
	}
	period := float64(s.pools[k].Device.PhysicalDevice.Caps.TimestampPeriod)
	s.accumulate(names, ticks[:len(names)+1], period)
	s.nodes[k] = names[:0]
}

// accumulate adds one frame of len(names)+1 timestamps taken at the start
// of each node and at the end of the frame.
func (s *FrameStats) accumulate(names []string, ticks []uint64, period float64) {
	var frame time.Duration
	for i, name := range names {
		d := time.Duration(float64(ticks[i+1]-ticks[i]) * period)
		frame += d
		avg, seen := s.avg[name]
		if !seen {
			s.order = append(s.order, name)
			s.avg[name] = d
			continue
		}
		s.avg[name] = avg + time.Duration(statsWeight*float64(d-avg))
	}
	if s.frames == 0 {
		s.total = frame
	} else {
		s.total += time.Duration(statsWeight * float64(frame-s.total))
	}
	s.frames++
}

// begin resets the pool of parity k at the start of its command buffer.
func (s *FrameStats) begin(cmd *vkg.CommandBuffer, k int) {
	cmd.ResetQueries(s.pools[k])
	s.nodes[k] = s.nodes[k][:0]
}

// enter timestamps the start of node. Nodes past the pool capacity are
// not timed.
func (s *FrameStats) enter(cmd *vkg.CommandBuffer, k int, node string) {
	if len(s.nodes[k])+1 >= maxTimestamps {
		return
	}
	cmd.WriteTimestamp(s.pools[k], vk.PipelineStageBottomOfPipeBit, uint32(len(s.nodes[k])))
	s.nodes[k] = append(s.nodes[k], node)
}

// end closes the last timed node.
func (s *FrameStats) end(cmd *vkg.CommandBuffer, k int) {
	if len(s.nodes[k]) > 0 {
		cmd.WriteTimestamp(s.pools[k], vk.PipelineStageBottomOfPipeBit, uint32(len(s.nodes[k])))
	}
}

// Node returns the running average GPU time of node.
func (s *FrameStats) Node(name string) time.Duration {
	return s.avg[name]
}

// Total is the running average GPU time of a frame.
func (s *FrameStats) Total() time.Duration {
	return s.total
}

// Report writes the averages as a table.
func (s *FrameStats) Report(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Node", "GPU time"})
	for _, name := range s.order {
		table.Append([]string{name, fmtMillis(s.avg[name])})
	}
	table.SetFooter([]string{fmt.Sprintf("%d frames", s.frames), fmtMillis(s.total)})
	table.Render()
}

func fmtMillis(d time.Duration) string {
	return fmt.Sprintf("%.3f ms", float64(d)/float64(time.Millisecond))
}

func (s *FrameStats) Destroy() {
	for _, p := range s.pools {
		if p != nil {
			p.Destroy()
		}
	}
}
