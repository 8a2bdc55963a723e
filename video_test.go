package visioncore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSeqInfo(t *testing.T, dir string, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "seqinfo.ini"), []byte(body), 0644); err != nil {
		t.Fatalf("writing seqinfo.ini: %v", err)
	}
}

func TestNewVideoFromFrames_ParsesSeqInfo(t *testing.T) {
	dir := t.TempDir()
	writeSeqInfo(t, dir, `[Sequence]
name=test-seq
imDir=img1
frameRate=25
seqLength=3
imWidth=640
imHeight=480
imExt=.jpg
`)

	vff, err := NewVideoFromFrames(dir, "", false)
	if err != nil {
		t.Fatalf("NewVideoFromFrames: %v", err)
	}
	if vff.length != 3 || vff.width != 640 || vff.height != 480 || vff.fps != 25 {
		t.Errorf("unexpected parsed metadata: %+v", vff)
	}
}

func TestNewVideoFromFrames_MissingRequiredFieldsErrors(t *testing.T) {
	dir := t.TempDir()
	writeSeqInfo(t, dir, `[Sequence]
name=bad-seq
`)
	if _, err := NewVideoFromFrames(dir, "", false); err == nil {
		t.Errorf("expected an error for seqinfo.ini missing seqLength/imWidth/imHeight")
	}
}

func TestNewVideoFromFrames_MissingFileErrors(t *testing.T) {
	if _, err := NewVideoFromFrames(t.TempDir(), "", false); err == nil {
		t.Errorf("expected an error when seqinfo.ini does not exist")
	}
}

func TestVideoFromFrames_FramesSkipsMissingImagesAndCloses(t *testing.T) {
	dir := t.TempDir()
	writeSeqInfo(t, dir, `[Sequence]
name=test-seq
imDir=img1
frameRate=10
seqLength=5
imWidth=64
imHeight=48
imExt=.jpg
`)
	vff, err := NewVideoFromFrames(dir, "", false)
	if err != nil {
		t.Fatalf("NewVideoFromFrames: %v", err)
	}
	defer vff.Close()

	ch, err := vff.Frames(context.Background())
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	count := 0
	for frame := range ch {
		frame.Mat.Close()
		count++
	}
	// None of the numbered image files exist on disk, so every frame is
	// skipped and the channel closes without ever sending one.
	if count != 0 {
		t.Errorf("expected 0 frames from a directory with no image files, got %d", count)
	}
}

func TestVideoFromFrames_UpdateClosesAtEnd(t *testing.T) {
	dir := t.TempDir()
	writeSeqInfo(t, dir, `[Sequence]
name=test-seq
imDir=img1
frameRate=10
seqLength=1
imWidth=64
imHeight=48
imExt=.jpg
`)
	vff, err := NewVideoFromFrames(dir, "", false)
	if err != nil {
		t.Fatalf("NewVideoFromFrames: %v", err)
	}
	vff.frameNumber = 1 // simulate having just processed the last frame
	frame := blankFrame()
	defer frame.Close()
	if err := vff.Update(frame); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if vff.videoWriter != nil {
		t.Errorf("expected Update to close the writer once the sequence is done")
	}
}
