// Package qr рисует QR-коды коротких ссылок в SVG, PNG и PDF.
package qr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	svg "github.com/ajstarks/svgo"
	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// ModuleSize размер модуля в пикселях. Поле в 4 модуля go-qrcode добавляет сам.
const ModuleSize = 10

// Code QR-код одной строки
type Code struct {
	content string
	bitmap  [][]bool
}

// New кодирует content с уровнем коррекции M
func New(content string) (*Code, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения QR: %w", err)
	}
	// Bitmap кодирует заново при каждом вызове, поэтому берём один раз
	return &Code{content: content, bitmap: q.Bitmap()}, nil
}

// Size сторона изображения в пикселях
func (c *Code) Size() int {
	return len(c.bitmap) * ModuleSize
}

// PNG растровое изображение, сторона равна Size()
func (c *Code) PNG() ([]byte, error) {
	q, err := qrcode.New(c.content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения QR: %w", err)
	}
	data, err := q.PNG(c.Size())
	if err != nil {
		return nil, fmt.Errorf("ошибка PNG: %w", err)
	}
	return data, nil
}

// SVG векторное изображение: по прямоугольнику на каждый тёмный модуль
func (c *Code) SVG() []byte {
	var buf bytes.Buffer
	size := c.Size()

	canvas := svg.New(&buf)
	canvas.Start(size, size)
	canvas.Rect(0, 0, size, size, "fill:#ffffff")
	for y, row := range c.bitmap {
		for x, dark := range row {
			if dark {
				canvas.Rect(x*ModuleSize, y*ModuleSize, ModuleSize, ModuleSize, "fill:#000000")
			}
		}
	}
	canvas.End()
	return buf.Bytes()
}

// PDF одностраничный документ с PNG на всю страницу.
// Размер страницы в пунктах равен размеру PNG в пикселях.
func (c *Code) PDF() ([]byte, error) {
	png, err := c.PNG()
	if err != nil {
		return nil, err
	}
	return PDFFromPNG(png)
}

// PDFFromPNG страница по размеру картинки
func PDFFromPNG(png []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения PNG: %w", err)
	}
	w, h := float64(cfg.Width), float64(cfg.Height)

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	const name = "qr"
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка PDF: %w", err)
	}
	return buf.Bytes(), nil
}
