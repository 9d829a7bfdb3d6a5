// Package recognition runs speech recognition over local audio files.
//
// An Adapter validates the requested model size and compute profile, picks a
// device through a HardwareProbe, loads a model from a Backend and drains the
// model's SegmentStream into a transcript.Result. Segments are appended as the
// backend produces them, so progress can be reported while a long episode is
// still being decoded.
//
// Two backends are provided: faster-whisper, driven through an embedded Python
// helper that prints JSON lines, and whisper-cpp, driven through the
// whisper-cli binary.
package recognition
