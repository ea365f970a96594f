package stream

import "testing"

func TestAudioStreamDescription(t *testing.T) {
	tests := []struct {
		name string
		in   AudioStream
		want string
	}{
		{
			name: "dts core",
			in:   AudioStream{MimeType: MimeDTS, ChannelCount: 6, SampleRate: 48000, BitRate: 1509000},
			want: "6 ch / 48 kHz /  1509 kbps",
		},
		{
			name: "opus",
			in:   AudioStream{MimeType: MimeOpus, ChannelCount: 2, SampleRate: 48000, IsVBR: true, PreSkip: 312},
			want: "2 ch / 48 kHz / VBR / pre-skip 312",
		},
		{
			name: "layout only",
			in:   AudioStream{MimeType: MimeDTSX, ChannelLayout: ChannelLayoutStereo, SampleRate: 44100},
			want: "2.0 / 44.1 kHz",
		},
		{
			name: "no channels",
			in:   AudioStream{MimeType: MimeDTSExpress, SampleRate: 48000},
			want: "48 kHz",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Description(); got != tt.want {
				t.Fatalf("Description()=%q want %q", got, tt.want)
			}
		})
	}
}

func TestAudioStreamDescriptionWithCore(t *testing.T) {
	a := AudioStream{
		MimeType:     MimeDTSExpress,
		ChannelCount: 2,
		SampleRate:   48000,
		CoreStream:   &AudioStream{MimeType: MimeDTS, ChannelCount: 6, SampleRate: 48000},
	}
	want := "2 ch / 48 kHz (DTS Core: 6 ch / 48 kHz)"
	if got := a.Description(); got != want {
		t.Fatalf("Description()=%q want %q", got, want)
	}

	clone := a.Clone()
	clone.CoreStream.ChannelCount = 8
	if a.CoreStream.ChannelCount != 6 {
		t.Fatal("Clone() shares the core stream")
	}
}

func TestMimeTypeString(t *testing.T) {
	if got := MimeDTSX.String(); got != "audio/vnd.dts.uhd;profile=p2" {
		t.Fatalf("MimeDTSX.String()=%q", got)
	}
	if got := MimeType(42).String(); got != "unknown" {
		t.Fatalf("MimeType(42).String()=%q", got)
	}
}
