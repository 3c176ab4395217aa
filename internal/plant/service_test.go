package plant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func TestCreatePlantAssignsIdentity(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	p := &Plant{
		TenantID:  "tenant-a",
		Name:      "Solar Park North",
		PlantType: "Photovoltaic",
		PowerKw:   150,
	}
	require.NoError(t, svc.CreatePlant(context.Background(), p))

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := svc.GetPlant(context.Background(), p.ID, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "Solar Park North", got.Name)
	assert.Equal(t, 150.0, got.PowerKw)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute,
		"timestamps survive the round trip through the store")
}

func TestGetPlantIsTenantScoped(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	p := &Plant{TenantID: "tenant-a", Name: "Rooftop", PlantType: "Photovoltaic", PowerKw: 6}
	require.NoError(t, svc.CreatePlant(context.Background(), p))

	_, err := svc.GetPlant(context.Background(), p.ID, "tenant-b")
	assert.True(t, errors.Is(err, ErrPlantNotFound))

	_, err = svc.GetPlant(context.Background(), uuid.Nil, "tenant-a")
	assert.Error(t, err)
}

func TestListPlantsOrdersByName(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db)

	for _, name := range []string{"Zeta Wind", "Alpha Solar", "Mid Hydro"} {
		require.NoError(t, svc.CreatePlant(context.Background(), &Plant{
			TenantID: "tenant-a", Name: name, PlantType: "Photovoltaic", PowerKw: 10,
		}))
	}
	require.NoError(t, svc.CreatePlant(context.Background(), &Plant{
		TenantID: "tenant-b", Name: "Other Tenant", PlantType: "Wind", PowerKw: 500,
	}))

	plants, err := svc.ListPlants(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, plants, 3)
	assert.Equal(t, "Alpha Solar", plants[0].Name)
	assert.Equal(t, "Mid Hydro", plants[1].Name)
	assert.Equal(t, "Zeta Wind", plants[2].Name)

	_, err = svc.ListPlants(context.Background(), "")
	assert.Error(t, err)
}
