package restore

import (
	"context"
	"fmt"

	"eks-backup/src/arn"
	"eks-backup/src/awsapi"
)

// LatestRecoveryPoint returns the newest completed top-level recovery point
// for the named cluster in the vault. Child points are never restore roots.
func LatestRecoveryPoint(ctx context.Context, backup awsapi.BackupService, vaultName, clusterName string) (awsapi.RecoveryPoint, error) {
	points, err := backup.ListRecoveryPoints(ctx, vaultName)
	if err != nil {
		return awsapi.RecoveryPoint{}, err
	}

	var best awsapi.RecoveryPoint
	found := false
	for _, rp := range points {
		if rp.ParentArn != "" || rp.Status != "COMPLETED" {
			continue
		}
		name, err := arn.ClusterName(rp.ResourceArn)
		if err != nil || name != clusterName {
			continue
		}
		if !found || rp.CreatedAt.After(best.CreatedAt) {
			best = rp
			found = true
		}
	}
	if !found {
		return awsapi.RecoveryPoint{}, fmt.Errorf("no completed recovery point for cluster %s in vault %s", clusterName, vaultName)
	}
	return best, nil
}

// FindRecoveryPoint resolves an explicit recovery point ARN in the vault.
func FindRecoveryPoint(ctx context.Context, backup awsapi.BackupService, vaultName, recoveryPointArn string) (awsapi.RecoveryPoint, error) {
	points, err := backup.ListRecoveryPoints(ctx, vaultName)
	if err != nil {
		return awsapi.RecoveryPoint{}, err
	}
	for _, rp := range points {
		if rp.Arn == recoveryPointArn {
			return rp, nil
		}
	}
	return awsapi.RecoveryPoint{}, fmt.Errorf("recovery point %s not found in vault %s", recoveryPointArn, vaultName)
}
