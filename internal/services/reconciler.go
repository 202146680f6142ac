// internal/services/reconciler.go
package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/imi-storefront/internal/models"
)

// RemoteCart is the server-side cart. AddItem must merge into an existing
// line with the same product and variant; the login merge depends on it.
type RemoteCart interface {
	GetCart(ctx context.Context) (models.Cart, error)
	AddItem(ctx context.Context, productID, variantID string, qty int) (*models.CartItem, error)
	UpdateItem(ctx context.Context, itemID string, qty int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// LocalCart is the device-local cart used while anonymous.
type LocalCart interface {
	Load() models.Cart
	Save(models.Cart) error
	Clear() error
}

// MergePolicy decides what happens to local lines whose remote add failed
// during the login merge.
type MergePolicy string

const (
	// MergePolicyClearAlways clears the local cart even when some adds
	// failed. Failed lines are lost.
	MergePolicyClearAlways MergePolicy = "clear-always"
	// MergePolicyRetainFailed keeps failed lines in the local cart so a
	// later sync can retry them.
	MergePolicyRetainFailed MergePolicy = "retain-failed"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(s); p {
	case MergePolicyClearAlways, MergePolicyRetainFailed:
		return p, nil
	case "":
		return MergePolicyRetainFailed, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q", s)
	}
}

// MergeReport lists the outcome of each local line during a login merge.
type MergeReport struct {
	Merged  []models.CompositeID
	Failed  []models.CompositeID
	Dropped []models.CompositeID
}

// Partial reports whether any local line did not reach the remote cart.
func (r MergeReport) Partial() bool {
	return len(r.Failed) > 0 || len(r.Dropped) > 0
}

// Pending reports whether lines were kept locally for a retry.
func (r MergeReport) Pending() bool {
	return len(r.Failed) > 0
}

type Reconciler struct {
	local  LocalCart
	remote RemoteCart
	policy MergePolicy
	logger logrus.FieldLogger
}

func NewReconciler(local LocalCart, remote RemoteCart, policy MergePolicy, logger logrus.FieldLogger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if policy == "" {
		policy = MergePolicyRetainFailed
	}
	return &Reconciler{
		local:  local,
		remote: remote,
		policy: policy,
		logger: logger.WithField("component", "reconciler"),
	}
}

func (r *Reconciler) Policy() MergePolicy {
	return r.policy
}

// Login folds the local cart into the remote cart, one AddItem per local
// line, then clears the local cart according to the merge policy and
// returns the remote cart as the new canonical state.
func (r *Reconciler) Login(ctx context.Context) (models.Cart, MergeReport, error) {
	report, err := r.MergePending(ctx)
	if err != nil {
		return models.Cart{}, report, err
	}

	cart, err := r.remote.GetCart(ctx)
	if err != nil {
		return models.Cart{}, report, fmt.Errorf("failed to load remote cart after merge: %w", err)
	}
	return cart, report, nil
}

// MergePending pushes whatever is in the local cart to the remote cart. It
// is the first half of Login and the retry path for lines a previous merge
// could not push. When ctx ends mid-merge, lines already pushed leave the
// local cart and the rest stay for the next attempt.
func (r *Reconciler) MergePending(ctx context.Context) (MergeReport, error) {
	local := r.local.Load()

	var (
		report   MergeReport
		retained models.Cart
	)
	for i, item := range local.Items {
		if err := ctx.Err(); err != nil {
			return report, r.abort(retained, local.Items[i:], err)
		}

		_, err := r.remote.AddItem(ctx, item.ProductID, item.VariantID, item.Quantity.Int())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, r.abort(retained, local.Items[i:], ctxErr)
			}

			r.logger.WithError(err).WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"variant_id": item.VariantID,
				"quantity":   item.Quantity,
			}).Warn("Failed to merge local cart item into remote cart")

			if r.policy == MergePolicyRetainFailed {
				report.Failed = append(report.Failed, item.Key())
				retained.Add(item)
			} else {
				report.Dropped = append(report.Dropped, item.Key())
			}
			continue
		}
		report.Merged = append(report.Merged, item.Key())
	}

	if err := r.store(retained); err != nil {
		return report, err
	}

	if len(report.Merged)+len(report.Failed)+len(report.Dropped) > 0 {
		r.logger.WithFields(logrus.Fields{
			"merged":  len(report.Merged),
			"failed":  len(report.Failed),
			"dropped": len(report.Dropped),
			"policy":  r.policy,
		}).Info("Local cart merged into remote cart")
	}
	return report, nil
}

// abort keeps the failed lines and the lines never attempted, then returns
// cause.
func (r *Reconciler) abort(retained models.Cart, remaining []models.CartItem, cause error) error {
	for _, item := range remaining {
		retained.Add(item)
	}
	if err := r.store(retained); err != nil {
		r.logger.WithError(err).Error("Failed to save unmerged local cart lines")
	}
	r.logger.WithError(cause).WithField("remaining", len(retained.Items)).
		Warn("Local cart merge interrupted")
	return cause
}

func (r *Reconciler) store(retained models.Cart) error {
	if retained.IsEmpty() {
		return r.local.Clear()
	}
	return r.local.Save(retained)
}

// Logout snapshots the canonical remote items into the local cart. The
// remote cart is left untouched.
func (r *Reconciler) Logout(items []models.CartItem) error {
	snapshot := models.Cart{Items: items}.Clone()
	for i := range snapshot.Items {
		snapshot.Items[i].ID = ""
		snapshot.Items[i].FoldedIDs = nil
	}
	if err := r.local.Save(snapshot); err != nil {
		return fmt.Errorf("failed to snapshot cart on logout: %w", err)
	}
	return nil
}
