// Package gpu renders cell grids with a wgpu render pipeline.
//
// Importing this package registers the "gpu" backend. Creation fails
// cleanly when no adapter is available, which lets the registry fall
// back to the software rasterizer.
package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/termgrid"
)

var (
	providerMu     sync.Mutex
	sharedProvider gpucontext.DeviceProvider
)

// SetDeviceProvider installs a shared GPU device source, typically the
// host application's gogpu context. The provider must expose HAL types
// via HalDevice() any and HalQueue() any. Rasterizers created afterwards
// use the shared device instead of opening their own adapter.
func SetDeviceProvider(p gpucontext.DeviceProvider) {
	providerMu.Lock()
	sharedProvider = p
	providerMu.Unlock()
}

// deviceHandle wraps a HAL device and queue plus ownership. Shared
// devices are never destroyed on release.
type deviceHandle struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool
}

// acquireDevice returns a shared device if a provider is installed,
// otherwise opens a standalone Vulkan device.
func acquireDevice() (*deviceHandle, error) {
	providerMu.Lock()
	p := sharedProvider
	providerMu.Unlock()

	if p != nil {
		h, err := sharedDevice(p)
		if err == nil {
			return h, nil
		}
		termgrid.Logger().Warn("gpu: shared device unusable, opening standalone", "error", err)
	}
	return standaloneDevice()
}

func sharedDevice(p gpucontext.DeviceProvider) (*deviceHandle, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := p.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	return &deviceHandle{device: device, queue: queue, owned: false}, nil
}

func standaloneDevice() (*deviceHandle, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	termgrid.Logger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &deviceHandle{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		owned:    true,
	}, nil
}

func (h *deviceHandle) release() {
	if h == nil {
		return
	}
	if h.owned {
		if h.device != nil {
			h.device.Destroy()
		}
		if h.instance != nil {
			h.instance.Destroy()
		}
	}
	h.device = nil
	h.queue = nil
	h.instance = nil
}
