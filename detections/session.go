package detections

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
)

// Session owns an ONNX Runtime session with preallocated input and output tensors.
// It is not safe for concurrent use.
type Session struct {
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
	outputShape ort.Shape
	width       int
	height      int
}

// NewSession loads modelPath and checks that its output has one score column per label.
// A mismatch returns an error wrapping ErrLabelMismatch.
func NewSession(modelPath string, labels []string, threads int) (*Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read model info from %s", modelPath)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, errors.Errorf("model has %d inputs and %d outputs, want 1 and 1", len(inputs), len(outputs))
	}

	inputShape := inputs[0].Dimensions
	outputShape := outputs[0].Dimensions
	if err := checkStaticShape(inputShape); err != nil {
		return nil, errors.Wrap(err, "input")
	}
	if err := checkStaticShape(outputShape); err != nil {
		return nil, errors.Wrap(err, "output")
	}
	if len(inputShape) != 4 || inputShape[1] != 3 {
		return nil, errors.Errorf("unsupported input shape %v, want [1 3 H W]", inputShape)
	}

	// Validate the label table against the output layout before allocating anything
	probe, err := NewOutput(make([]float32, outputShape.FlattenedSize()), outputShape)
	if err != nil {
		return nil, err
	}
	if err := ValidateOutput(probe, labels); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating session options")
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "error creating session")
	}

	return &Session{
		session:     session,
		input:       inputTensor,
		output:      outputTensor,
		outputShape: outputShape,
		width:       int(inputShape[3]),
		height:      int(inputShape[2]),
	}, nil
}

func checkStaticShape(shape ort.Shape) error {
	for _, d := range shape {
		if d <= 0 {
			return errors.Errorf("dynamic or empty dimension in shape %v", shape)
		}
	}
	return nil
}

// InputSize is the model-space resolution.
func (s *Session) InputSize() (int, int) {
	return s.width, s.height
}

// Run executes the network on a CHW float32 input. The returned Output does not alias the
// session's tensors.
func (s *Session) Run(input []float32) (Output, error) {
	dst := s.input.GetData()
	if len(input) != len(dst) {
		return Output{}, errors.Errorf("input holds %d values, model wants %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := s.session.Run(); err != nil {
		return Output{}, errors.Wrap(err, "model inference")
	}

	data := append([]float32(nil), s.output.GetData()...)
	return NewOutput(data, s.outputShape)
}

func (s *Session) Destroy() error {
	var err error
	if s.session != nil {
		err = multierr.Append(err, s.session.Destroy())
	}
	if s.input != nil {
		err = multierr.Append(err, s.input.Destroy())
	}
	if s.output != nil {
		err = multierr.Append(err, s.output.Destroy())
	}
	return err
}
