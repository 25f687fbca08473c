// Package vatic imports crowd annotations exported from a vatic video
// labeling session. The bounding box dump is converted to per frame
// head point files which feed the density map builder.
package vatic

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Bitsy-Chuck/crowdnet/crowd"
)

// Importer converts one labeled video. The bounding box dump is
// expected at DumpPath, exported from the vatic session beforehand.
type Importer struct {
	Identifier string
	FramesDir  string
	OutDir     string
}

func NewImporter(identifier, framesDir, outDir string) *Importer {
	return &Importer{Identifier: identifier, FramesDir: framesDir, OutDir: outDir}
}

// DumpPath is the bounding box text dump for this video.
func (im *Importer) DumpPath() string {
	return filepath.Join(im.OutDir, "text_dump.txt")
}

// ImportDump reads the text dump and appends one head point, the box
// center, to the point file of each annotated frame. When copyFrames
// is set the frame image is copied beside its point file.
func (im *Importer) ImportDump(copyFrames bool) error {
	f, err := os.Open(im.DumpPath())
	if err != nil {
		return errors.Wrap(err, "vatic: open dump")
	}
	defer f.Close()
	if err = os.MkdirAll(im.OutDir, 0755); err != nil {
		return errors.Wrap(err, "vatic: create output dir")
	}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// track id, x0, y0, x1, y1, frame, ...
		if len(fields) < 6 {
			return errors.Errorf("vatic: dump line %d: expected at least 6 fields, got %d", line, len(fields))
		}
		x0, err0 := strconv.Atoi(fields[1])
		y0, err1 := strconv.Atoi(fields[2])
		x1, err2 := strconv.Atoi(fields[3])
		y1, err3 := strconv.Atoi(fields[4])
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil {
			return errors.Errorf("vatic: dump line %d: malformed bounding box", line)
		}
		frame := fields[5]
		point := crowd.Point{X: (x0 + x1) / 2, Y: (y0 + y1) / 2}
		framePath, err := im.FramePath(frame)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(framePath), filepath.Ext(framePath))
		if err = appendPoint(filepath.Join(im.OutDir, name+".pts.gob"), point); err != nil {
			return err
		}
		if copyFrames {
			if err = copyFile(framePath, filepath.Join(im.OutDir, filepath.Base(framePath))); err != nil {
				return err
			}
		}
	}
	return errors.Wrap(scanner.Err(), "vatic: read dump")
}

// FramePath walks the frames directory for <frame>.jpg.
func (im *Importer) FramePath(frame string) (string, error) {
	want := frame + ".jpg"
	var found string
	err := filepath.Walk(im.FramesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && info.Name() == want {
			found = path
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "vatic: walk frames")
	}
	if found == "" {
		return "", errors.Errorf("vatic: frame %s not found under %s", want, im.FramesDir)
	}
	return found, nil
}

// LoadPoints reads a per frame head point file.
func LoadPoints(path string) ([]crowd.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "vatic: open points")
	}
	defer f.Close()
	var points []crowd.Point
	if err = gob.NewDecoder(f).Decode(&points); err != nil {
		return nil, errors.Wrap(err, "vatic: decode points")
	}
	return points, nil
}

func appendPoint(path string, p crowd.Point) error {
	var points []crowd.Point
	if _, err := os.Stat(path); err == nil {
		points, err = LoadPoints(path)
		if err != nil {
			return err
		}
	}
	points = append(points, p)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "vatic: create points")
	}
	if err = gob.NewEncoder(f).Encode(points); err != nil {
		f.Close()
		return errors.Wrap(err, "vatic: encode points")
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "vatic: open frame")
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "vatic: copy frame")
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "vatic: copy frame")
	}
	return out.Close()
}
