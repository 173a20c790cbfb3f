package trayitem

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
)

// Pixmap is one resolution of an icon in the wire format: 32-bit ARGB with
// big-endian pixel words, as mandated by the protocol regardless of host
// byte order. It marshals as (iiay).
type Pixmap struct {
	Width  int32
	Height int32
	Bytes  []byte
}

// defaultIconSizes is the standard resolution set used when an icon does
// not report its available resolutions.
var defaultIconSizes = []image.Point{{X: 16, Y: 16}, {X: 22, Y: 22}, {X: 24, Y: 24}, {X: 32, Y: 32}, {X: 48, Y: 48}}

// Icon is a source of bitmap renditions for the pixmap codec.
type Icon interface {
	// Sizes enumerates the natively available resolutions. An empty slice
	// means none are known and the codec falls back to its standard set.
	Sizes() []image.Point

	// Render produces a bitmap of the given size.
	Render(size image.Point) (image.Image, error)
}

// PixmapList converts icon into its wire representation, one entry per
// available resolution in enumeration order. Resolutions that fail to
// render are skipped; if every one fails, a single 32x32 rendition is
// produced as a last resort.
func PixmapList(icon Icon) []Pixmap {
	sizes := icon.Sizes()
	if len(sizes) == 0 {
		sizes = defaultIconSizes
	}

	pixmaps := make([]Pixmap, 0, len(sizes))
	for _, size := range sizes {
		img, err := icon.Render(size)
		if err != nil || img == nil {
			continue
		}

		pixmaps = append(pixmaps, encodeARGB(img))
	}

	if len(pixmaps) == 0 {
		img, err := icon.Render(image.Pt(32, 32))
		if err == nil && img != nil {
			pixmaps = append(pixmaps, encodeARGB(img))
		}
	}

	return pixmaps
}

// encodeARGB converts img to the ARGB32 wire format. Pixel words are
// written out explicitly in big-endian order, so the conversion is
// independent of host byte order.
func encodeARGB(img image.Image) Pixmap {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	buf := make([]byte, 4*width*height)
	offset := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			word := uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
			binary.BigEndian.PutUint32(buf[offset:], word)
			offset += 4
		}
	}

	return Pixmap{Width: int32(width), Height: int32(height), Bytes: buf}
}

func pixmapsEqual(a, b []Pixmap) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].Width != b[i].Width || a[i].Height != b[i].Height || !bytes.Equal(a[i].Bytes, b[i].Bytes) {
			return false
		}
	}

	return true
}

// ImageIcon is an [Icon] backed by a single base image, scaled to whatever
// resolution the codec requests.
type ImageIcon struct {
	img   image.Image
	sizes []image.Point
}

// NewImageIcon returns an [Icon] backed by img. Without explicit sizes the
// codec renders the standard resolution set.
func NewImageIcon(img image.Image, sizes ...image.Point) *ImageIcon {
	return &ImageIcon{img: img, sizes: sizes}
}

// NewFileIcon loads an icon bitmap from path. PNG, JPEG, GIF, and BMP
// files are supported.
func NewFileIcon(path string) (*ImageIcon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trayitem: failed to open icon %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("trayitem: failed to decode icon %s: %w", path, err)
	}

	return NewImageIcon(img), nil
}

func (i *ImageIcon) Sizes() []image.Point {
	return i.sizes
}

func (i *ImageIcon) Render(size image.Point) (image.Image, error) {
	if i.img == nil {
		return nil, fmt.Errorf("trayitem: no image to render")
	}

	bounds := i.img.Bounds()
	if bounds.Dx() == size.X && bounds.Dy() == size.Y {
		return i.img, nil
	}

	return resize.Resize(uint(size.X), uint(size.Y), i.img, resize.Bilinear), nil
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// resolveMenuIcon turns a menu icon argument into either a theme icon name
// or raw PNG data. Theme lookup comes first; when it fails the argument is
// treated as a path to an icon file.
func resolveMenuIcon(nameOrPath string) (name string, data []byte, err error) {
	if themeIconExists(nameOrPath) {
		return nameOrPath, nil, nil
	}

	data, err = loadIconData(nameOrPath)
	if err != nil {
		if strings.ContainsRune(nameOrPath, '/') {
			return "", nil, fmt.Errorf("trayitem: failed to load icon %s: %w", nameOrPath, err)
		}
		// A plain name that is not in any local theme directory. Pass it
		// through; the host may still resolve it against its own theme.
		return nameOrPath, nil, nil
	}

	return "", data, nil
}

// themeIconExists reports whether name resolves in the XDG icon theme
// directories.
func themeIconExists(name string) bool {
	if name == "" || strings.ContainsAny(name, "/.") {
		return false
	}

	for _, dir := range iconThemeDirs() {
		// icons/<theme>/<size>/<context>/<name>.<ext>
		matches, _ := filepath.Glob(filepath.Join(dir, "*", "*", "*", name+".*"))
		if len(matches) > 0 {
			return true
		}

		// pixmaps/<name>.<ext>
		matches, _ = filepath.Glob(filepath.Join(dir, name+".*"))
		if len(matches) > 0 {
			return true
		}
	}

	return false
}

func iconThemeDirs() []string {
	var dirs []string

	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".icons"))
	}

	dataDirs := os.Getenv("XDG_DATA_DIRS")
	if dataDirs == "" {
		dataDirs = "/usr/local/share:/usr/share"
	}
	for _, dir := range strings.Split(dataDirs, ":") {
		if dir != "" {
			dirs = append(dirs, filepath.Join(dir, "icons"))
		}
	}

	return append(dirs, "/usr/share/pixmaps")
}

// loadIconData reads an icon file and returns PNG bytes, re-encoding when
// the file is in another supported format. dbusmenu transmits icon-data as
// PNG.
func loadIconData(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(data, pngMagic) {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
