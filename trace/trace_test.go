package trace_test

import (
	"bufio"
	"context"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/y86sim/config"
	"github.com/sarchlab/y86sim/emu"
	. "github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/timing/pipeline"
	"github.com/sarchlab/y86sim/trace"
)

func addPipeline(opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	memory := emu.NewMemoryWithSize(0x1000)
	prog := NewBuilder().Emit(
		Irmovq(5, RAX),
		Irmovq(3, RBX),
		Addq(RBX, RAX),
		Halt(),
	).MustBytes()
	Expect(memory.LoadProgram(0, prog)).To(Succeed())
	return pipeline.NewPipeline(memory, opts...)
}

func records(buf *bytes.Buffer) []map[string]interface{} {
	var out []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		rec := map[string]interface{}{}
		Expect(json.Unmarshal(scanner.Bytes(), &rec)).To(Succeed())
		out = append(out, rec)
	}
	return out
}

func messages(recs []map[string]interface{}, msg string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, r := range recs {
		if r["@message"] == msg {
			out = append(out, r)
		}
	}
	return out
}

var _ = Describe("Trace", func() {
	Describe("ParseLevel", func() {
		DescribeTable("known levels",
			func(name string, want hclog.Level) {
				level, err := trace.ParseLevel(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(level).To(Equal(want))
			},
			Entry("off", "off", hclog.NoLevel),
			Entry("info", "info", hclog.Info),
			Entry("debug", "DEBUG", hclog.Debug),
			Entry("trace", "trace", hclog.Trace),
		)

		It("should reject unknown levels", func() {
			_, err := trace.ParseLevel("loud")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Sink", func() {
		var buf *bytes.Buffer

		open := func(level string) *trace.Sink {
			sink, err := trace.Open(config.TraceConfig{
				Level: level, Format: "json", MaxSizeMB: 1,
			}, buf)
			Expect(err).NotTo(HaveOccurred())
			return sink
		}

		BeforeEach(func() {
			buf = &bytes.Buffer{}
		})

		It("should log retirements and the halt at info", func() {
			sink := open("info")
			p := addPipeline(pipeline.WithEventSink(sink))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			recs := records(buf)
			retired := messages(recs, "retire")
			Expect(retired).To(HaveLen(4))
			Expect(retired[2]["inst"]).To(Equal("addq %rbx, %rax"))
			Expect(retired[0]["@level"]).To(Equal("info"))
			Expect(messages(recs, "halt")).To(HaveLen(1))
			Expect(messages(recs, "stall")).To(BeEmpty())
			Expect(messages(recs, "cycle")).To(BeEmpty())
		})

		It("should add stalls and register writes at debug", func() {
			sink := open("debug")
			p := addPipeline(pipeline.WithEventSink(sink))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			recs := records(buf)
			Expect(messages(recs, "stall")).To(HaveLen(2))
			Expect(messages(recs, "fetch")).To(HaveLen(4))
			writes := messages(recs, "register write")
			Expect(writes).NotTo(BeEmpty())
			Expect(writes[len(writes)-1]["reg"]).To(Equal("%rax"))
			Expect(writes[len(writes)-1]["value"]).To(Equal("0x8"))
			Expect(messages(recs, "cycle")).To(BeEmpty())
		})

		It("should dump latches every cycle at trace", func() {
			sink := open("trace")
			p := addPipeline(pipeline.WithEventSink(sink))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(messages(records(buf), "cycle")).To(HaveLen(10))
		})

		It("should log nothing when off", func() {
			sink := open("off")
			p := addPipeline(pipeline.WithEventSink(sink))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.Len()).To(BeZero())
		})

		It("should log faults at error with the status code", func() {
			sink := open("info")
			memory := emu.NewMemoryWithSize(0x100)
			Expect(memory.LoadProgram(0, []byte{0xC0})).To(Succeed())
			p := pipeline.NewPipeline(memory, pipeline.WithEventSink(sink))
			_, err := p.Run(context.Background())
			Expect(err).To(HaveOccurred())

			faults := messages(records(buf), "fault")
			Expect(faults).To(HaveLen(1))
			Expect(faults[0]["@level"]).To(Equal("error"))
			Expect(faults[0]["code"]).To(BeNumerically("==", -1))
			Expect(faults[0]["stage"]).To(Equal("fetch"))
		})

		It("should reject an unknown level", func() {
			_, err := trace.Open(config.TraceConfig{Level: "loud"}, buf)
			Expect(err).To(HaveOccurred())
		})

		It("should write to a rotated file", func() {
			dir, err := os.MkdirTemp("", "y86-trace-test")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)
			path := filepath.Join(dir, "trace.log")

			sink, err := trace.Open(config.TraceConfig{
				Level: "info", Format: "auto", File: path, MaxSizeMB: 1,
			}, buf)
			Expect(err).NotTo(HaveOccurred())
			p := addPipeline(pipeline.WithEventSink(sink))
			_, err = p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sink.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(messages(records(bytes.NewBuffer(data)), "retire")).To(HaveLen(4))
			Expect(buf.Len()).To(BeZero())
		})
	})

	Describe("Recorder", func() {
		It("should keep every event by default", func() {
			rec := trace.NewRecorder()
			p := addPipeline(pipeline.WithEventSink(rec))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.Count(pipeline.EventCycle)).To(Equal(10))
			Expect(rec.Count(pipeline.EventRetire)).To(Equal(4))
			Expect(rec.Count(pipeline.EventHalt)).To(Equal(1))
		})

		It("should filter by kind", func() {
			rec := trace.NewRecorder(pipeline.EventRetire)
			p := addPipeline(pipeline.WithEventSink(rec))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			events := rec.Events()
			Expect(events).To(HaveLen(4))
			for _, ev := range events {
				Expect(ev.Kind).To(Equal(pipeline.EventRetire))
			}
			Expect(events[3].Inst).To(Equal("halt"))
		})

		It("should reset", func() {
			rec := trace.NewRecorder()
			rec.Handle(pipeline.Event{Kind: pipeline.EventFetch})
			rec.Reset()
			Expect(rec.Events()).To(BeEmpty())
		})
	})

	Describe("Multi", func() {
		It("should fan out and skip nil sinks", func() {
			a := trace.NewRecorder()
			b := trace.NewRecorder(pipeline.EventHalt)
			p := addPipeline(pipeline.WithEventSink(trace.Multi(a, nil, b)))
			_, err := p.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(a.Count(pipeline.EventRetire)).To(Equal(4))
			Expect(b.Events()).To(HaveLen(1))
		})
	})
})
