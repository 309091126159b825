//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ============================================================================
// ALSA control interface (pure Go, no cgo)
// ============================================================================
// The mixer control is driven through the kernel control device
// /dev/snd/controlC<N> with the SNDRV_CTL_IOCTL_* requests from
// <sound/asound.h>. Struct layouts below match the 64-bit kernel ABI
// (long == int64), which is why this file is restricted to 64-bit
// little-endian architectures using the generic ioctl encoding.
// ============================================================================

const controlDevGlob = "/dev/snd/controlC*"

const (
	ctlElemIfaceMixer  = 2 // SNDRV_CTL_ELEM_IFACE_MIXER
	ctlElemTypeInteger = 2 // SNDRV_CTL_ELEM_TYPE_INTEGER
	ctlMaxIntValues    = 128
)

// ctlCardInfo mirrors struct snd_ctl_card_info.
type ctlCardInfo struct {
	Card       int32
	Pad        int32
	ID         [16]byte
	Driver     [16]byte
	Name       [32]byte
	Longname   [80]byte
	Reserved   [16]byte
	Mixername  [80]byte
	Components [128]byte
}

// ctlElemID mirrors struct snd_ctl_elem_id.
type ctlElemID struct {
	Numid     uint32
	Iface     int32
	Device    uint32
	Subdevice uint32
	Name      [44]byte
	Index     uint32
}

// ctlElemInfo mirrors struct snd_ctl_elem_info. Value is the C union; for
// integer elements it starts with long min, max, step.
type ctlElemInfo struct {
	ID       ctlElemID
	Type     int32
	Access   uint32
	Count    uint32
	Owner    int32
	Value    [128]byte
	Reserved [64]byte
}

// ctlElemValue mirrors struct snd_ctl_elem_value for integer elements.
type ctlElemValue struct {
	ID       ctlElemID
	Indirect uint32
	_        uint32 // union alignment
	Integer  [ctlMaxIntValues]int64
	Reserved [128]byte
}

const (
	iocWrite = 1
	iocRead  = 2
)

func ctlIoc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('U')<<8 | nr
}

var (
	ioctlCardInfo  = ctlIoc(iocRead, 0x01, unsafe.Sizeof(ctlCardInfo{}))
	ioctlElemInfo  = ctlIoc(iocRead|iocWrite, 0x11, unsafe.Sizeof(ctlElemInfo{}))
	ioctlElemRead  = ctlIoc(iocRead|iocWrite, 0x12, unsafe.Sizeof(ctlElemValue{}))
	ioctlElemWrite = ctlIoc(iocRead|iocWrite, 0x13, unsafe.Sizeof(ctlElemValue{}))
)

// ioctl issues a control request, retrying when interrupted by a signal.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// alsaControl is an integer mixer element on an open control device.
type alsaControl struct {
	fd       int
	card     int
	name     string
	id       ctlElemID
	rng      VolumeRange
	channels int
}

// openMixerControl finds the card whose ALSA card name equals mixerName and
// resolves the integer element controlName on its mixer interface.
func openMixerControl(mixerName, controlName string) (Control, error) {
	fd, card, err := openCard(mixerName)
	if err != nil {
		return nil, err
	}

	ctl, err := resolveElem(fd, controlName)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	ctl.card = card
	return ctl, nil
}

// controlDevices lists control device nodes ordered by card number.
func controlDevices() ([]string, error) {
	paths, err := filepath.Glob(controlDevGlob)
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return cardNumber(paths[i]) < cardNumber(paths[j])
	})
	return paths, nil
}

func cardNumber(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "controlC"))
	if err != nil {
		return -1
	}
	return n
}

func openCard(name string) (int, int, error) {
	paths, err := controlDevices()
	if err != nil {
		return -1, -1, fmt.Errorf("list sound cards: %w", err)
	}

	var openErrs []error
	for _, p := range paths {
		fd, err := unix.Open(p, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			openErrs = append(openErrs, fmt.Errorf("open %s: %w", p, err))
			continue
		}

		var info ctlCardInfo
		if err := ioctl(fd, ioctlCardInfo, unsafe.Pointer(&info)); err != nil {
			openErrs = append(openErrs, fmt.Errorf("card info %s: %w", p, err))
			_ = unix.Close(fd)
			continue
		}

		if cString(info.Name[:]) == name {
			return fd, int(info.Card), nil
		}
		_ = unix.Close(fd)
	}

	if len(openErrs) > 0 {
		return -1, -1, fmt.Errorf("%w: %q (%w)", ErrDeviceNotFound, name, errors.Join(openErrs...))
	}
	return -1, -1, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

func resolveElem(fd int, name string) (*alsaControl, error) {
	if len(name) >= len(ctlElemID{}.Name) {
		return nil, fmt.Errorf("%w: %q (name too long)", ErrControlNotFound, name)
	}

	var info ctlElemInfo
	info.ID.Iface = ctlElemIfaceMixer
	copy(info.ID.Name[:], name)

	if err := ioctl(fd, ioctlElemInfo, unsafe.Pointer(&info)); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %q", ErrControlNotFound, name)
		}
		return nil, fmt.Errorf("query control %q: %w", name, err)
	}

	if info.Type != ctlElemTypeInteger {
		return nil, fmt.Errorf("%w: %q has element type %d", ErrUnsupportedType, name, info.Type)
	}
	if info.Count < 1 || info.Count > ctlMaxIntValues {
		return nil, fmt.Errorf("%w: %q has %d values", ErrUnsupportedType, name, info.Count)
	}

	return &alsaControl{
		fd:       fd,
		name:     name,
		id:       info.ID,
		rng:      integerRange(&info),
		channels: int(info.Count),
	}, nil
}

// integerRange decodes value.integer.{min,max} from an element info union.
func integerRange(info *ctlElemInfo) VolumeRange {
	return VolumeRange{
		Min: int(int64(binary.NativeEndian.Uint64(info.Value[0:8]))),
		Max: int(int64(binary.NativeEndian.Uint64(info.Value[8:16]))),
	}
}

func (c *alsaControl) Range() VolumeRange { return c.rng }

func (c *alsaControl) Channels() int { return c.channels }

func (c *alsaControl) read() (*ctlElemValue, error) {
	v := &ctlElemValue{ID: c.id}
	if err := ioctl(c.fd, ioctlElemRead, unsafe.Pointer(v)); err != nil {
		return nil, fmt.Errorf("read control %q: %w", c.name, err)
	}
	return v, nil
}

func (c *alsaControl) checkChannel(channel int) error {
	if channel < 0 || channel >= c.channels {
		return fmt.Errorf("control %q has no channel %d", c.name, channel)
	}
	return nil
}

func (c *alsaControl) Value(channel int) (int, error) {
	if err := c.checkChannel(channel); err != nil {
		return 0, err
	}
	v, err := c.read()
	if err != nil {
		return 0, err
	}
	return int(v.Integer[channel]), nil
}

// SetValue writes one channel, leaving the others as the kernel reports them.
func (c *alsaControl) SetValue(channel int, value int) error {
	if err := c.checkChannel(channel); err != nil {
		return err
	}
	v, err := c.read()
	if err != nil {
		return err
	}
	v.Integer[channel] = int64(value)
	if err := ioctl(c.fd, ioctlElemWrite, unsafe.Pointer(v)); err != nil {
		return fmt.Errorf("write control %q: %w", c.name, err)
	}
	return nil
}

func (c *alsaControl) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}
