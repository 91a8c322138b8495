package io

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/astromol/linert/raytrace"
)

// cubeMagic marks an image cube file.
const cubeMagic = int64(0x43554245) // "CUBE"

// cubeHeader is the fixed-size header of a raw image cube. The external
// FITS writer consumes these files; the cube itself carries no world
// coordinate metadata beyond the pixel and channel scales.
type cubeHeader struct {
	Magic  int64
	Pixels int64
	NChan  int64
	Unit   int64
	ImgRes float64 // rad per pixel
	VelRes float64 // m/s per channel
}

// WriteImageCube writes the intensity plane, the optical-depth plane,
// and the three Stokes aggregates of a rendered image, little-endian
// float64 throughout.
func WriteImageCube(w io.Writer, img *raytrace.Image) error {
	hd := cubeHeader{
		Magic:  cubeMagic,
		Pixels: int64(img.Pixels),
		NChan:  int64(img.NChan),
		Unit:   int64(img.Unit),
		ImgRes: img.ImgRes,
		VelRes: img.VelRes,
	}
	if err := binary.Write(w, end, &hd); err != nil {
		return err
	}

	for pix := range img.Intensity {
		if err := binary.Write(w, end, img.Intensity[pix]); err != nil {
			return err
		}
	}
	for pix := range img.Tau {
		if err := binary.Write(w, end, img.Tau[pix]); err != nil {
			return err
		}
	}
	for pix := range img.Stokes {
		if err := binary.Write(w, end, img.Stokes[pix][:]); err != nil {
			return err
		}
	}

	return nil
}

// WriteImageCubeFile writes a rendered image to the named file.
func WriteImageCubeFile(path string, img *raytrace.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteImageCube(f, img)
}
