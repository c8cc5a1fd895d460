package gesture

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/natya/internal/features"
)

// SVM defaults, matching the usual RBF SVC settings.
const (
	DefaultC       = 1.0
	DefaultTol     = 1e-3
	DefaultMaxIter = 100000
)

// SVMConfig holds training parameters for the SVM classifier.
type SVMConfig struct {
	// C is the soft-margin penalty.
	C float64

	// Gamma is the RBF kernel coefficient. Zero selects 1/(features * Var(X)).
	Gamma float64

	// Tol is the KKT violation tolerance.
	Tol float64

	// MaxIter caps the number of SMO steps per binary machine. A machine
	// that hits the cap keeps the multipliers reached so far.
	MaxIter int
}

// DefaultSVMConfig returns an SVMConfig with sensible default values.
func DefaultSVMConfig() SVMConfig {
	return SVMConfig{
		C:       DefaultC,
		Gamma:   0,
		Tol:     DefaultTol,
		MaxIter: DefaultMaxIter,
	}
}

// SVM is a one-vs-rest RBF support vector classifier trained with SMO.
type SVM struct {
	config SVMConfig
	model  atomic.Pointer[svmModel]
}

type svmModel struct {
	labels   []string
	vectors  []features.Vector
	dim      int
	gamma    float64
	machines []binaryMachine
}

// binaryMachine separates one label from the rest. coef holds alpha_i*y_i for
// the support vectors listed in index.
type binaryMachine struct {
	index []int
	coef  []float64
	bias  float64
}

// NewSVM creates an unfitted SVM. Zero fields in config fall back to defaults.
func NewSVM(config SVMConfig) *SVM {
	if config.C <= 0 {
		config.C = DefaultC
	}
	if config.Tol <= 0 {
		config.Tol = DefaultTol
	}
	if config.MaxIter <= 0 {
		config.MaxIter = DefaultMaxIter
	}
	return &SVM{config: config}
}

// Ready reports whether the SVM has a fitted model.
func (s *SVM) Ready() bool {
	return s.model.Load() != nil
}

// Labels returns the vocabulary of the current model, or nil before a fit.
func (s *SVM) Labels() []string {
	m := s.model.Load()
	if m == nil {
		return nil
	}
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Fit trains one binary machine per label over the full training set. When
// ctx ends first, Fit returns its error and the previous model stays.
func (s *SVM) Fit(ctx context.Context, samples []features.Vector, labels []string) error {
	if len(samples) != len(labels) {
		return fmt.Errorf("%w: %d samples, %d labels", ErrLengthMismatch, len(samples), len(labels))
	}

	classes := distinctLabels(labels)
	if len(classes) < 2 {
		return fmt.Errorf("%w: %d distinct labels, need 2", ErrNotEnoughData, len(classes))
	}

	dim := len(samples[0])
	for i, v := range samples {
		if len(v) != dim {
			return fmt.Errorf("%w: sample %d has %d features, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	if dim == 0 {
		return fmt.Errorf("%w: empty feature vectors", ErrDimensionMismatch)
	}

	vectors := make([]features.Vector, len(samples))
	for i, v := range samples {
		vectors[i] = v.Clone()
	}

	gamma := s.config.Gamma
	if gamma <= 0 {
		gamma = scaleGamma(vectors, dim)
	}

	gram := gramMatrix(vectors, gamma)

	m := &svmModel{
		labels:   classes,
		vectors:  vectors,
		dim:      dim,
		gamma:    gamma,
		machines: make([]binaryMachine, len(classes)),
	}

	y := make([]float64, len(labels))
	for c, class := range classes {
		for i, l := range labels {
			if l == class {
				y[i] = 1
			} else {
				y[i] = -1
			}
		}

		alpha, bias, err := smo(ctx, gram, y, s.config.C, s.config.Tol, s.config.MaxIter)
		if err != nil {
			return err
		}

		machine := binaryMachine{bias: bias}
		for i, a := range alpha {
			if a > 1e-10 {
				machine.index = append(machine.index, i)
				machine.coef = append(machine.coef, a*y[i])
			}
		}
		m.machines[c] = machine
	}

	s.model.Store(m)
	return nil
}

// Predict returns the label whose machine scores highest; ties go to the
// label seen first during training.
func (s *SVM) Predict(sample features.Vector) (string, error) {
	m := s.model.Load()
	if m == nil {
		return "", ErrModelNotReady
	}
	if len(sample) != m.dim {
		return "", fmt.Errorf("%w: got %d features, model expects %d", ErrDimensionMismatch, len(sample), m.dim)
	}

	kernel := make([]float64, len(m.vectors))
	for i, v := range m.vectors {
		kernel[i] = rbf(v, sample, m.gamma)
	}

	best := 0
	bestScore := math.Inf(-1)
	for c, machine := range m.machines {
		score := machine.bias
		for k, idx := range machine.index {
			score += machine.coef[k] * kernel[idx]
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	return m.labels[best], nil
}

// scaleGamma returns 1/(dim * Var(X)) over every feature value, or 1 when X is constant.
func scaleGamma(vectors []features.Vector, dim int) float64 {
	flat := make([]float64, 0, len(vectors)*dim)
	for _, v := range vectors {
		flat = append(flat, v...)
	}

	variance := stat.PopVariance(flat, nil)
	if variance <= 0 || math.IsNaN(variance) {
		return 1
	}
	return 1 / (float64(dim) * variance)
}

func rbf(a, b []float64, gamma float64) float64 {
	d := floats.Distance(a, b, 2)
	return math.Exp(-gamma * d * d)
}

func gramMatrix(vectors []features.Vector, gamma float64) *mat.Dense {
	n := len(vectors)
	k := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		k.Set(i, i, 1)
		for j := i + 1; j < n; j++ {
			v := rbf(vectors[i], vectors[j], gamma)
			k.Set(i, j, v)
			k.Set(j, i, v)
		}
	}
	return k
}

// tau replaces a non-positive curvature in the working-set step.
const tau = 1e-12

// checkEvery is the number of SMO steps between context checks.
const checkEvery = 256

// smo solves the soft-margin dual for labels y in {-1, +1} over the kernel
// matrix k and returns the multipliers and the bias. Each step picks the
// maximal violating i and the partner j with the largest second-order gain,
// and costs O(n). It stops when the KKT gap falls below tol, after maxSteps
// steps, or when ctx is done.
func smo(ctx context.Context, k *mat.Dense, y []float64, c, tol float64, maxSteps int) ([]float64, float64, error) {
	n := len(y)
	alpha := make([]float64, n)

	// grad[t] is the gradient of the dual objective, sum_s y_t y_s K_ts a_s - 1.
	grad := make([]float64, n)
	for t := range grad {
		grad[t] = -1
	}

	upper := func(t int) bool { return alpha[t] >= c }
	lower := func(t int) bool { return alpha[t] <= 0 }

	for step := 0; step < maxSteps; step++ {
		if step%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}

		i, gmax := -1, math.Inf(-1)
		for t := 0; t < n; t++ {
			if y[t] > 0 {
				if !upper(t) && -grad[t] >= gmax {
					i, gmax = t, -grad[t]
				}
			} else if !lower(t) && grad[t] >= gmax {
				i, gmax = t, grad[t]
			}
		}
		if i < 0 {
			break
		}

		ki := k.RawRowView(i)
		j, gmax2, best := -1, math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			var diff float64
			if y[t] > 0 {
				if lower(t) {
					continue
				}
				gmax2 = max(gmax2, grad[t])
				diff = gmax + grad[t]
			} else {
				if upper(t) {
					continue
				}
				gmax2 = max(gmax2, -grad[t])
				diff = gmax - grad[t]
			}
			if diff <= 0 {
				continue
			}
			quad := ki[i] + k.At(t, t) - 2*ki[t]
			if quad <= 0 {
				quad = tau
			}
			if gain := -diff * diff / quad; gain <= best {
				j, best = t, gain
			}
		}
		if j < 0 || gmax+gmax2 < tol {
			break
		}

		kj := k.RawRowView(j)
		ai, aj := alpha[i], alpha[j]
		qij := y[i] * y[j] * ki[j]

		if y[i] != y[j] {
			quad := ki[i] + kj[j] + 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := ai - aj
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j], alpha[i] = 0, diff
				}
				if alpha[i] > c {
					alpha[i], alpha[j] = c, c-diff
				}
			} else {
				if alpha[i] < 0 {
					alpha[i], alpha[j] = 0, -diff
				}
				if alpha[j] > c {
					alpha[j], alpha[i] = c, c+diff
				}
			}
		} else {
			quad := ki[i] + kj[j] - 2*qij
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := ai + aj
			alpha[i] -= delta
			alpha[j] += delta
			if sum > c {
				if alpha[i] > c {
					alpha[i], alpha[j] = c, sum-c
				}
				if alpha[j] > c {
					alpha[j], alpha[i] = c, sum-c
				}
			} else {
				if alpha[j] < 0 {
					alpha[j], alpha[i] = 0, sum
				}
				if alpha[i] < 0 {
					alpha[i], alpha[j] = 0, sum
				}
			}
		}

		di, dj := alpha[i]-ai, alpha[j]-aj
		for t := 0; t < n; t++ {
			grad[t] += y[t] * (y[i]*ki[t]*di + y[j]*kj[t]*dj)
		}
	}

	return alpha, bias(alpha, grad, y, c), nil
}

// bias averages y_t*grad_t over free multipliers, or takes the midpoint of
// the feasible interval when every multiplier is at a bound.
func bias(alpha, grad, y []float64, c float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sum float64
	free := 0
	for t := range alpha {
		yg := y[t] * grad[t]
		switch {
		case alpha[t] >= c:
			if y[t] < 0 {
				ub = min(ub, yg)
			} else {
				lb = max(lb, yg)
			}
		case alpha[t] <= 0:
			if y[t] > 0 {
				ub = min(ub, yg)
			} else {
				lb = max(lb, yg)
			}
		default:
			free++
			sum += yg
		}
	}

	var rho float64
	if free > 0 {
		rho = sum / float64(free)
	} else {
		rho = (ub + lb) / 2
	}
	return -rho
}
