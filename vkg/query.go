package vkg

import (
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// QueryPool is a pool of GPU timestamp queries.
type QueryPool struct {
	Device      *Device
	VKQueryPool vk.QueryPool
	Count       uint32
}

func (d *Device) CreateQueryPool(name string, count uint32) (*QueryPool, error) {
	createInfo := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeTimestamp,
		QueryCount: count,
	}
	var pool vk.QueryPool
	err := vk.Error(vk.CreateQueryPool(d.VKDevice, &createInfo, nil, &pool))
	if err != nil {
		return nil, err
	}
	d.SetObjectName(ObjectQueryPool, unsafe.Pointer(pool), name)
	return &QueryPool{Device: d, VKQueryPool: pool, Count: count}, nil
}

// Results reads every query as raw 64 bit ticks. It returns false when the
// results are not yet available.
func (q *QueryPool) Results() ([]uint64, bool) {
	out := make([]uint64, q.Count)
	res := vk.GetQueryPoolResults(q.Device.VKDevice, q.VKQueryPool, 0, q.Count,
		uint(len(out)*8), unsafe.Pointer(&out[0]), 8, vk.QueryResultFlags(vk.QueryResult64Bit))
	if res != vk.Success {
		return nil, false
	}
	return out, true
}

// Duration converts a tick delta to wall time using the device timestamp
// period.
func (q *QueryPool) Duration(ticks uint64) time.Duration {
	period := q.Device.PhysicalDevice.Caps.TimestampPeriod
	return time.Duration(float64(ticks) * float64(period))
}

func (q *QueryPool) Destroy() {
	vk.DestroyQueryPool(q.Device.VKDevice, q.VKQueryPool, nil)
}
