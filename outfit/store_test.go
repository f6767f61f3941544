package outfit

import (
	"testing"

	"outfitapi/models"

	"github.com/stretchr/testify/assert"
)

func outfitWithID(id uint) models.GeneratedOutfit {
	o := models.GeneratedOutfit{}
	o.ID = id
	return o
}

func TestStoreIsPerUser(t *testing.T) {
	store := NewStore()
	store.Prepend(1, outfitWithID(10))
	store.Prepend(1, outfitWithID(11))
	store.Prepend(2, outfitWithID(20))

	list := store.List(1)
	assert.Len(t, list, 2)
	assert.Equal(t, uint(11), list[0].ID)
	assert.Len(t, store.List(2), 1)
	assert.Empty(t, store.List(3))
}

func TestStoreRemoveAndEvents(t *testing.T) {
	store := NewStore()
	var events []Event
	unsubscribe := store.Subscribe(func(e Event) { events = append(events, e) })

	store.Load(1, []models.GeneratedOutfit{outfitWithID(1), outfitWithID(2)})
	assert.True(t, store.Remove(1, 1))
	assert.False(t, store.Remove(1, 99))
	unsubscribe()
	store.Prepend(1, outfitWithID(3))

	assert.Len(t, events, 2)
	assert.Equal(t, EventLoaded, events[0].Kind)
	assert.Equal(t, EventRemoved, events[1].Kind)
	assert.Equal(t, uint(1), events[1].Outfit.ID)
	assert.Equal(t, []uint{3, 2}, []uint{store.List(1)[0].ID, store.List(1)[1].ID})
}

func TestStoreListIsACopy(t *testing.T) {
	store := NewStore()
	store.Prepend(1, outfitWithID(1))
	list := store.List(1)
	list[0].Title = "changed"
	assert.Empty(t, store.List(1)[0].Title)
}

func TestStorePrependExistingMovesToHead(t *testing.T) {
	store := NewStore()
	store.Load(1, []models.GeneratedOutfit{outfitWithID(2), outfitWithID(1)})

	store.Prepend(1, outfitWithID(1))
	list := store.List(1)
	assert.Len(t, list, 2)
	assert.Equal(t, []uint{1, 2}, []uint{list[0].ID, list[1].ID})

	assert.True(t, store.Remove(1, 1))
	list = store.List(1)
	assert.Len(t, list, 1)
	assert.Equal(t, uint(2), list[0].ID)
}

func TestStoreRemoveDropsDuplicates(t *testing.T) {
	store := NewStore()
	store.Load(1, []models.GeneratedOutfit{outfitWithID(5), outfitWithID(5), outfitWithID(6)})

	assert.True(t, store.Remove(1, 5))
	list := store.List(1)
	assert.Len(t, list, 1)
	assert.Equal(t, uint(6), list[0].ID)
}
