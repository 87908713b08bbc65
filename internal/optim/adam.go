package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float32{0.9, 0.999},
//	})
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int                                             // Timestep for bias correction
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // First moment estimates
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // Second moment estimates
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-7)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-7
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-7
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient and frozen parameters are skipped.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}
		m, v := a.moments(param)
		a.updateParameter(param, grad.AsFloat32(), m, v, biasCorrection1, biasCorrection2)
	}
}

func (a *Adam[B]) moments(param *nn.Parameter[B]) (m, v *tensor.Tensor[float32, B]) {
	m, ok := a.m[param]
	if !ok {
		m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		a.m[param] = m
	}
	v, ok = a.v[param]
	if !ok {
		v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		a.v[param] = v
	}
	return m, v
}

// updateParameter performs Adam update for a single parameter.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	gradData []float32,
	m, v *tensor.Tensor[float32, B],
	biasCorrection1, biasCorrection2 float32,
) {
	mData := m.Data()
	vData := v.Data()
	paramData := param.Tensor().Data()

	for i := range paramData {
		g := gradData[i]
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2
		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the current timestep.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// Name returns "adam".
func (a *Adam[B]) Name() string {
	return "adam"
}

// StateDict returns the timestep and both moment buffers of every stepped
// parameter, keyed "m.<param>" and "v.<param>".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor, 2*len(a.m)+1)
	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, a.backend.Device())
	step.AsInt32()[0] = int32(a.t) //nolint:gosec // step counts stay far below 2^31
	sd["t"] = step

	for _, p := range a.params {
		if m, ok := a.m[p]; ok {
			sd[slotName("m", p.Name())] = m.Raw()
			sd[slotName("v", p.Name())] = a.v[p].Raw()
		}
	}
	return sd
}

// LoadStateDict restores the timestep and moment buffers.
func (a *Adam[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if step, ok := sd["t"]; ok {
		if step.DType() != tensor.Int32 || step.NumElements() != 1 {
			return fmt.Errorf("adam: invalid timestep tensor %s%v", step.DType(), step.Shape())
		}
		a.t = int(step.AsInt32()[0])
	}

	for _, p := range a.params {
		m, v := a.moments(p)
		mOK, err := loadSlot(m.Raw(), sd, slotName("m", p.Name()))
		if err != nil {
			return err
		}
		vOK, err := loadSlot(v.Raw(), sd, slotName("v", p.Name()))
		if err != nil {
			return err
		}
		if !mOK && !vOK {
			delete(a.m, p)
			delete(a.v, p)
		}
	}
	return nil
}
